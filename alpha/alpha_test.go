package alpha

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// footprint builds a boolean matrix from direct successions.
func footprint(n int, successions ...[2]int) [][]bool {
	fm := make([][]bool, n)
	for i := range fm {
		fm[i] = make([]bool, n)
	}
	for _, s := range successions {
		fm[s[0]][s[1]] = true
	}
	return fm
}

func pair(a, b []int) Pair {
	var p Pair
	for _, x := range a {
		p.A |= Singleton(x)
	}
	for _, x := range b {
		p.B |= Singleton(x)
	}
	return p
}

func TestSetOps(t *testing.T) {
	s := Singleton(0) | Singleton(3)
	assert.True(t, s.Has(0))
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(1))
	assert.Equal(t, []int{0, 3}, s.Members())
	assert.True(t, Singleton(3).SubsetOf(s))
	assert.False(t, s.SubsetOf(Singleton(3)))
	assert.True(t, s.Without(0).Without(3).Empty())
}

func TestDeriveRelations(t *testing.T) {
	// a>b, b>c, c>b: a->b causal, b||c, a#c, no loops.
	rel := Derive(footprint(3, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 1}))

	assert.True(t, rel.Causality(0, 1))
	assert.False(t, rel.Causality(1, 0))
	assert.True(t, rel.Parallel(1, 2))
	assert.True(t, rel.Parallel(2, 1))
	assert.True(t, rel.Choice(0, 2))
	assert.True(t, rel.Choice(2, 0))
	assert.False(t, rel.SelfLoop(1))
}

func TestDeriveSelfLoop(t *testing.T) {
	rel := Derive(footprint(2, [2]int{0, 0}))
	assert.True(t, rel.SelfLoop(0))
	assert.True(t, rel.Parallel(0, 0))
	assert.False(t, rel.SelfLoop(1))
}

func TestPairsLinearTrace(t *testing.T) {
	// Case A B C: expect ({A},{B}) and ({B},{C}).
	rel := Derive(footprint(3, [2]int{0, 1}, [2]int{1, 2}))
	got := Pairs(rel)

	require.Len(t, got, 2)
	assert.Contains(t, got, pair([]int{0}, []int{1}))
	assert.Contains(t, got, pair([]int{1}, []int{2}))
}

func TestPairsParallelism(t *testing.T) {
	// Cases ABCD and ACBD: B and C are parallel, so ({A},{B,C}) must not
	// survive; instead four singleton places.
	rel := Derive(footprint(4,
		[2]int{0, 1}, [2]int{0, 2},
		[2]int{1, 2}, [2]int{2, 1},
		[2]int{1, 3}, [2]int{2, 3}))
	got := Pairs(rel)

	require.Len(t, got, 4)
	assert.Contains(t, got, pair([]int{0}, []int{1}))
	assert.Contains(t, got, pair([]int{0}, []int{2}))
	assert.Contains(t, got, pair([]int{1}, []int{3}))
	assert.Contains(t, got, pair([]int{2}, []int{3}))
}

func TestPairsChoice(t *testing.T) {
	// Cases AB and AC: B#C merge into one place ({A},{B,C}).
	rel := Derive(footprint(3, [2]int{0, 1}, [2]int{0, 2}))
	got := Pairs(rel)

	require.Len(t, got, 1)
	assert.Equal(t, pair([]int{0}, []int{1, 2}), got[0])
}

func TestPairsNeverObservedActivity(t *testing.T) {
	// A fourth activity with no events is in choice with everyone but in
	// causality with no one; it must not join any pair.
	rel := Derive(footprint(4, [2]int{0, 1}, [2]int{0, 2}))
	got := Pairs(rel)

	require.Len(t, got, 1)
	assert.Equal(t, pair([]int{0}, []int{1, 2}), got[0])
}

func TestPairsSelfLoopRewrite(t *testing.T) {
	// Cases "A B B" and "A C": B loops on itself, B#C. The candidate
	// ({A},{B,C}) survives maximality and is then rewritten to ({A},{C}).
	rel := Derive(footprint(3, [2]int{0, 1}, [2]int{1, 1}, [2]int{0, 2}))
	got := Pairs(rel)

	require.Len(t, got, 1)
	assert.Equal(t, pair([]int{0}, []int{2}), got[0])
}

func TestPairsSelfLoopOnlySuccessor(t *testing.T) {
	// Case A B B C: B is a loop, so no side may contain it alone and no
	// place survives between A and C.
	rel := Derive(footprint(3, [2]int{0, 1}, [2]int{1, 1}, [2]int{1, 2}))
	got := Pairs(rel)

	assert.Empty(t, got)
}

func TestPairsSingleActivity(t *testing.T) {
	rel := Derive(footprint(1))
	assert.Empty(t, Pairs(rel))
}
