package alpha

import (
	"math/bits"
	"sort"
)

// Set is a subset of activity ids encoded as a bitmask. Activity i is a
// member iff bit i is set. The encoding caps the fleet at 64 activities,
// far beyond what the exponential subset enumeration below can chew anyway.
type Set uint64

// Singleton returns the set {i}.
func Singleton(i int) Set { return 1 << uint(i) }

// Has reports membership of activity i.
func (s Set) Has(i int) bool { return s&(1<<uint(i)) != 0 }

// Without returns s with activity i removed.
func (s Set) Without(i int) Set { return s &^ (1 << uint(i)) }

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return s == 0 }

// SubsetOf reports s ⊆ other.
func (s Set) SubsetOf(other Set) bool { return s&other == s }

// Members returns the ids in ascending order.
func (s Set) Members() []int {
	out := make([]int, 0, bits.OnesCount64(uint64(s)))
	for s != 0 {
		i := bits.TrailingZeros64(uint64(s))
		out = append(out, i)
		s = s.Without(i)
	}
	return out
}

// Pair is an (A,B) pair: every a in A causally precedes every b in B, and
// each side is internally in choice. One pair becomes one place.
type Pair struct {
	A Set
	B Set
}

// subsumedBy reports A ⊆ A' and B ⊆ B'.
func (p Pair) subsumedBy(other Pair) bool {
	return p.A.SubsetOf(other.A) && p.B.SubsetOf(other.B)
}

// independent reports whether the subset qualifies as one side of a pair.
// A singleton qualifies unless the activity loops on itself. Larger sets
// require pairwise choice between distinct members; a looping member can
// still slip in here and is corrected by the rewrite step afterwards.
func (r *Relations) independent(s Set) bool {
	members := s.Members()
	if len(members) == 1 {
		return !r.SelfLoop(members[0])
	}
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if !r.Choice(members[i], members[j]) {
				return false
			}
		}
	}
	return true
}

// causalityPair reports whether every (a,b) with a in A, b in B is a causality.
func (r *Relations) causalityPair(a, b Set) bool {
	for _, x := range a.Members() {
		for _, y := range b.Members() {
			if !r.Causality(x, y) {
				return false
			}
		}
	}
	return true
}

// Pairs synthesizes the maximal (A,B)-pair set for the relations:
// enumerate independent subsets, keep every ordered pair fully connected by
// causality, drop pairs subsumed by larger ones, then rewrite pairs that
// contain self-looping activities.
func Pairs(rel *Relations) []Pair {
	independents := independentSets(rel)

	candidates := map[Pair]bool{}
	for _, a := range independents {
		for _, b := range independents {
			if rel.causalityPair(a, b) {
				candidates[Pair{A: a, B: b}] = true
			}
		}
	}

	dropSubsumed(candidates)
	rewriteSelfLoops(rel, candidates)

	out := make([]Pair, 0, len(candidates))
	for p := range candidates {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// independentSets enumerates every non-empty subset of activities that
// qualifies as a pair side.
func independentSets(rel *Relations) []Set {
	n := rel.Size()
	var out []Set
	for mask := Set(1); mask < 1<<uint(n); mask++ {
		if rel.independent(mask) {
			out = append(out, mask)
		}
	}
	return out
}

// dropSubsumed removes every pair that is a strict subset of another pair.
func dropSubsumed(pairs map[Pair]bool) {
	for p := range pairs {
		for q := range pairs {
			if p != q && p.subsumedBy(q) {
				delete(pairs, p)
				break
			}
		}
	}
}

// rewriteSelfLoops removes looping activities from the surviving pairs.
// A loop x||x contradicts the choice requirement within a side, so x may not
// stand in a place's input or output set; the reduced pair is re-added only
// if it remains non-empty and is not subsumed by a surviving pair.
func rewriteSelfLoops(rel *Relations, pairs map[Pair]bool) {
	for x := 0; x < rel.Size(); x++ {
		if !rel.SelfLoop(x) {
			continue
		}
		for _, p := range keys(pairs) {
			inA, inB := p.A.Has(x), p.B.Has(x)
			if !inA && !inB {
				continue
			}

			delete(pairs, p)
			reduced := Pair{A: p.A, B: p.B}
			if inA {
				reduced.A = reduced.A.Without(x)
			}
			if inB {
				reduced.B = reduced.B.Without(x)
			}
			if reduced.A.Empty() || reduced.B.Empty() {
				continue
			}

			subsumed := false
			for q := range pairs {
				if reduced.subsumedBy(q) {
					subsumed = true
					break
				}
			}
			if !subsumed {
				pairs[reduced] = true
			}
		}
	}
}

func keys(pairs map[Pair]bool) []Pair {
	out := make([]Pair, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	return out
}
