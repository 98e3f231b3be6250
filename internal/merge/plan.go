// Package merge turns similarity groups into label replacements and drives
// the confirm-and-merge workflow against the remote service.
package merge

import (
	"errors"
	"fmt"

	"github.com/lherron/ttags/internal/domain"
	"github.com/lherron/ttags/internal/labels"
	"github.com/lherron/ttags/internal/similarity"
)

// ErrUnknownLabel is returned when a canonical name has no indexed identity
var ErrUnknownLabel = errors.New("no label with that name")

// Resolution is the canonical identity chosen for a name.
type Resolution struct {
	Canonical  labels.Ref
	Candidates []labels.Ref
	// Ambiguous is set when several identities share the name and the
	// first was picked.
	Ambiguous bool
}

// Resolve picks the identity that will replace the rest of a group. When
// more than one identity carries name, the first in index order wins.
func Resolve(name string, byRef *labels.CardIndex) (Resolution, error) {
	candidates := byRef.Named(name)
	if len(candidates) == 0 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return Resolution{
		Canonical:  candidates[0],
		Candidates: candidates,
		Ambiguous:  len(candidates) > 1,
	}, nil
}

// Replace swaps one label on one card: remove From, then add To.
type Replace struct {
	Card domain.Card
	From labels.Ref
	To   labels.Ref
}

// Plan is the full set of replacements that collapses a group.
type Plan struct {
	Group similarity.Group
	Resolution
	Replaces []Replace
}

// PlanGroup computes the replacements that collapse group onto canonical.
// Every card under every identity of every other name in the group gets
// exactly one Replace; cards under the canonical name are left alone.
// Names without indexed identities contribute nothing.
func PlanGroup(group similarity.Group, canonical string, byRef *labels.CardIndex, byName *labels.NameIndex) (Plan, error) {
	if !group.Contains(canonical) {
		return Plan{}, fmt.Errorf("%q is not a member of group %v", canonical, []string(group))
	}

	res, err := Resolve(canonical, byRef)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Group: group, Resolution: res}
	seen := make(map[[2]string]bool)
	for _, name := range group.Without(canonical) {
		for _, ref := range byName.Distinct(name) {
			for _, card := range byRef.Cards(ref) {
				key := [2]string{card.ID, ref.ID}
				if seen[key] {
					continue
				}
				seen[key] = true
				plan.Replaces = append(plan.Replaces, Replace{
					Card: card,
					From: ref,
					To:   res.Canonical,
				})
			}
		}
	}

	return plan, nil
}
