package activity_node

import "github.com/ds-kiel/edgealpha/matrix"

// Summary is the snapshot an activity node exports to the central node.
// Only the row and slots belonging to the exporting node's activity id are
// authoritative; everything else is zero filler whose version number loses
// every merge.
type Summary struct {
	StartActivities *matrix.Vector `json:"start_activities"`
	EndActivities   []int          `json:"end_activities"`
	SeqNumbers      *matrix.Vector `json:"seq_nmbr_vector"`
	Footprint       *matrix.Matrix `json:"fm"`
}

// Valid checks the summary's dimensions against the fleet size.
func (s *Summary) Valid(n int) bool {
	return s.StartActivities != nil && s.StartActivities.Len() == n &&
		s.SeqNumbers != nil && s.SeqNumbers.Len() == n &&
		s.Footprint != nil && s.Footprint.Rows() == n && s.Footprint.Cols() == n
}
