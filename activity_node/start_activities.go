package activity_node

// StartActivities tracks the cases this node's activity opened. Membership
// is add-only; the first member flips the node's start flag via the injected
// correlations handle.
type StartActivities struct {
	byCase map[string]bool
	corr   *Correlations
}

// NewStartActivities wires the set to the aggregate it updates.
func NewStartActivities(corr *Correlations) *StartActivities {
	return &StartActivities{byCase: map[string]bool{}, corr: corr}
}

// Add records that this activity opened caseID. Re-adding a known case
// changes nothing and reports false.
func (s *StartActivities) Add(caseID string) bool {
	if s.byCase[caseID] {
		return false
	}
	s.byCase[caseID] = true
	s.corr.MarkStart()
	return true
}

// Contains reports membership.
func (s *StartActivities) Contains(caseID string) bool { return s.byCase[caseID] }

// Len returns the number of cases opened by this activity.
func (s *StartActivities) Len() int { return len(s.byCase) }
