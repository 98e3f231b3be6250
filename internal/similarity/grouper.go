// Package similarity clusters label names that are likely duplicates of one
// another. Groups are disjoint, contain at least two names, and names that
// match nothing are dropped.
package similarity

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

const (
	// DefaultCloseMatchCutoff is the minimum CloseMatchRatio for NearestMatch
	DefaultCloseMatchCutoff = 0.4
	// DefaultEditThreshold is the EditRatio a name must exceed for EditDistance
	DefaultEditThreshold = 40
)

// Group is a set of mutually similar names, sorted ascending.
type Group []string

// Contains reports whether name is a member of the group.
func (g Group) Contains(name string) bool {
	for _, n := range g {
		if n == name {
			return true
		}
	}
	return false
}

// Without returns the group minus name, preserving order.
func (g Group) Without(name string) Group {
	out := make(Group, 0, len(g))
	for _, n := range g {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Grouper partitions names into similarity groups.
type Grouper interface {
	Group(names []string) []Group
}

// NearestMatch picks a random remaining name as seed and groups every
// remaining name whose score against the seed reaches Cutoff.
type NearestMatch struct {
	Score  Scorer
	Cutoff float64
	// Rand selects seeds. Nil uses a randomly seeded source.
	Rand *rand.Rand
}

// NewNearestMatch returns the ratio based strategy with the default cutoff.
func NewNearestMatch() *NearestMatch {
	return &NearestMatch{Score: CloseMatchRatio, Cutoff: DefaultCloseMatchCutoff}
}

// Group implements Grouper.
func (g *NearestMatch) Group(names []string) []Group {
	score := g.Score
	if score == nil {
		score = CloseMatchRatio
	}
	r := g.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pool := unique(names)
	var groups []Group
	for len(pool) > 0 {
		seed := pool[r.IntN(len(pool))]
		matched := map[string]bool{seed: true}
		for _, name := range pool {
			if score(name, seed) >= g.Cutoff {
				matched[name] = true
			}
		}
		pool = remove(pool, matched)
		groups = appendGroup(groups, matched)
	}
	return groups
}

// EditDistance takes the lexicographically first remaining name as seed and
// groups every remaining name scoring above Threshold. Both sides are passed
// through Normalize before scoring. Output is fully deterministic.
type EditDistance struct {
	Score     Scorer
	Threshold float64
	Normalize func(string) string
}

// NewEditDistance returns the edit-distance strategy with the default
// threshold and separator normalization.
func NewEditDistance() *EditDistance {
	return &EditDistance{
		Score:     EditRatio,
		Threshold: DefaultEditThreshold,
		Normalize: NormalizeSeparators,
	}
}

// Group implements Grouper.
func (g *EditDistance) Group(names []string) []Group {
	score := g.Score
	if score == nil {
		score = EditRatio
	}
	normalize := g.Normalize
	if normalize == nil {
		normalize = func(s string) string { return s }
	}

	pool := unique(names)
	sort.Strings(pool)

	var groups []Group
	for len(pool) > 0 {
		seed := pool[0]
		normSeed := normalize(seed)
		matched := map[string]bool{seed: true}
		for _, name := range pool[1:] {
			if score(normSeed, normalize(name)) > g.Threshold {
				matched[name] = true
			}
		}
		pool = remove(pool, matched)
		groups = appendGroup(groups, matched)
	}
	return groups
}

// Strategy names accepted by New
const (
	StrategyEdit  = "edit"
	StrategyRatio = "ratio"
)

// New returns the grouper registered under name.
func New(name string) (Grouper, error) {
	switch name {
	case "", StrategyEdit:
		return NewEditDistance(), nil
	case StrategyRatio:
		return NewNearestMatch(), nil
	default:
		return nil, fmt.Errorf("unknown grouping strategy %q: must be one of: %s, %s", name, StrategyEdit, StrategyRatio)
	}
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func remove(pool []string, matched map[string]bool) []string {
	kept := pool[:0]
	for _, n := range pool {
		if !matched[n] {
			kept = append(kept, n)
		}
	}
	return kept
}

// appendGroup adds matched as a sorted group unless it is a singleton.
func appendGroup(groups []Group, matched map[string]bool) []Group {
	if len(matched) < 2 {
		return groups
	}
	g := make(Group, 0, len(matched))
	for n := range matched {
		g = append(g, n)
	}
	sort.Strings(g)
	return append(groups, g)
}
