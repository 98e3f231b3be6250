// Package labels builds the lookup tables the merge planner works from: which
// cards carry each label identity, and which identities share a name.
package labels

import "github.com/lherron/ttags/internal/domain"

// Ref identifies a label by name and id. Two refs with equal names and
// different ids are distinct labels.
type Ref struct {
	Name string
	ID   string
}

// RefOf returns the identity of l.
func RefOf(l domain.Label) Ref {
	return Ref{Name: l.Name, ID: l.ID}
}

// CardIndex maps a label identity to the cards bearing it. Keys and cards
// keep first-seen order.
type CardIndex struct {
	keys  []Ref
	cards map[Ref][]domain.Card
}

// Keys returns every identity in first-seen order.
func (x *CardIndex) Keys() []Ref {
	return append([]Ref(nil), x.keys...)
}

// Cards returns the cards bearing ref, in the order they were indexed.
func (x *CardIndex) Cards(ref Ref) []domain.Card {
	return x.cards[ref]
}

// Len returns the number of distinct identities.
func (x *CardIndex) Len() int {
	return len(x.keys)
}

// Named returns the identities whose name equals name, in first-seen order.
func (x *CardIndex) Named(name string) []Ref {
	var refs []Ref
	for _, k := range x.keys {
		if k.Name == name {
			refs = append(refs, k)
		}
	}
	return refs
}

// NameIndex maps a label name to the identities registered under it. An
// identity is appended once per card carrying it, so lists may repeat.
type NameIndex struct {
	names []string
	refs  map[string][]Ref
}

// Names returns every label name in first-seen order.
func (x *NameIndex) Names() []string {
	return append([]string(nil), x.names...)
}

// Refs returns the identities registered under name, duplicates included.
// Unknown names yield nil.
func (x *NameIndex) Refs(name string) []Ref {
	return x.refs[name]
}

// Distinct returns the identities registered under name with repeats removed.
func (x *NameIndex) Distinct(name string) []Ref {
	seen := make(map[Ref]bool)
	var out []Ref
	for _, r := range x.refs[name] {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Build indexes cards by label identity and by label name. Names and ids are
// taken as-is; nothing is validated.
func Build(cards []domain.Card) (*CardIndex, *NameIndex) {
	byRef := &CardIndex{cards: make(map[Ref][]domain.Card)}
	byName := &NameIndex{refs: make(map[string][]Ref)}

	for _, card := range cards {
		for _, label := range card.Labels {
			ref := RefOf(label)

			if _, ok := byRef.cards[ref]; !ok {
				byRef.keys = append(byRef.keys, ref)
			}
			byRef.cards[ref] = append(byRef.cards[ref], card)

			if _, ok := byName.refs[ref.Name]; !ok {
				byName.names = append(byName.names, ref.Name)
			}
			byName.refs[ref.Name] = append(byName.refs[ref.Name], ref)
		}
	}

	return byRef, byName
}
