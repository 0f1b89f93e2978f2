package central_node

import (
	"sort"

	"github.com/ds-kiel/edgealpha/activity_node"
	"github.com/ds-kiel/edgealpha/matrix"
)

// mergedData is the fleet-wide view after folding all node summaries.
type mergedData struct {
	// Footprint is the binarized direct-succession matrix.
	Footprint [][]bool
	// Starts lists the activities flagged as case openers, ascending.
	Starts []int
	// Ends lists the activities observed closing a case, ascending.
	Ends []int
}

// mergeSummaries folds the per-node snapshots into one view. Rows compete by
// sequence number: for each activity row, the version from the summary with
// the highest seq wins, which under a single poll round is simply each
// node's own row. End activities are a plain union. The fold is insensitive
// to summary order because per-row max-seq selection is associative.
func mergeSummaries(n int, summaries []*activity_node.Summary) *mergedData {
	counts := matrix.NewMatrix(n, n)
	seq := matrix.NewVector(n)
	startFlags := matrix.NewVector(n)
	endSet := map[int]bool{}

	for _, s := range summaries {
		if s == nil {
			continue
		}
		for row := 0; row < n; row++ {
			if s.SeqNumbers.At(row) > seq.At(row) {
				seq.Set(row, s.SeqNumbers.At(row))
				counts.SetRow(row, s.Footprint.Row(row))
				startFlags.Set(row, s.StartActivities.At(row))
			}
		}
		for _, end := range s.EndActivities {
			if end >= 0 && end < n {
				endSet[end] = true
			}
		}
	}

	merged := &mergedData{Footprint: counts.Binarize()}
	for i := 0; i < n; i++ {
		if startFlags.At(i) != 0 {
			merged.Starts = append(merged.Starts, i)
		}
	}
	for end := range endSet {
		merged.Ends = append(merged.Ends, end)
	}
	sort.Ints(merged.Ends)
	return merged
}
