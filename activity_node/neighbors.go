package activity_node

import (
	"errors"
	"sort"
	"time"
)

// ErrDuplicateTimestamp rejects a second event with the same timestamp on
// the same case; the driver is required to disambiguate those upstream.
var ErrDuplicateTimestamp = errors.New("activity_node: duplicate event timestamp within case")

// Neighborhood records one observed event of this node's activity and its
// adjacent events within the case. Pred is fixed at creation when known;
// Succ is written at most once, when a peer reports it chose this event as
// its predecessor. Neither field is ever overwritten.
type Neighborhood struct {
	EventTime  time.Time
	EventStamp string // wire form of EventTime, echoed back to peers verbatim

	Pred     int // -1 while unknown
	PredTime time.Time

	Succ     int // -1 until assigned
	SuccTime time.Time
}

// Collection is the per-case event store of one activity node. Each case
// maps to its neighborhoods ordered by event time ascending. Entries are
// never removed. Callers provide their own locking.
type Collection struct {
	byCase map[string][]*Neighborhood
}

// NewCollection returns an empty store.
func NewCollection() *Collection {
	return &Collection{byCase: map[string][]*Neighborhood{}}
}

// Has reports whether an event at exactly this time is already stored for
// the case.
func (c *Collection) Has(caseID string, at time.Time) bool {
	list := c.byCase[caseID]
	i := searchTime(list, at)
	return i < len(list) && list[i].EventTime.Equal(at)
}

// Add stores a new event, keeping the case list ordered by event time.
// pred < 0 means the event opened its case.
func (c *Collection) Add(caseID, stamp string, at time.Time, pred int, predAt time.Time) error {
	list := c.byCase[caseID]
	i := searchTime(list, at)
	if i < len(list) && list[i].EventTime.Equal(at) {
		return ErrDuplicateTimestamp
	}

	nb := &Neighborhood{
		EventTime:  at,
		EventStamp: stamp,
		Pred:       pred,
		Succ:       -1,
	}
	if pred >= 0 {
		nb.PredTime = predAt
	}

	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = nb
	c.byCase[caseID] = list
	return nil
}

// Candidate scans the case's events from latest to earliest and returns the
// first one that can precede an event at reqAt: either it has no successor
// yet and happened before reqAt, or reqAt falls strictly between it and its
// recorded successor. The between clause guards against events arriving out
// of order; with strictly in-order delivery it never fires.
func (c *Collection) Candidate(caseID string, reqAt time.Time) *Neighborhood {
	list, ok := c.byCase[caseID]
	if !ok {
		return nil
	}

	for i := len(list) - 1; i >= 0; i-- {
		nb := list[i]
		if !nb.EventTime.Before(reqAt) {
			continue
		}
		if nb.Succ < 0 {
			return nb
		}
		if reqAt.Before(nb.SuccTime) {
			return nb
		}
	}
	return nil
}

// AssignSucc writes the successor of the event at exactly `at`. It returns
// false when no such event exists or its successor slot is already taken;
// an assigned slot is never overwritten.
func (c *Collection) AssignSucc(caseID string, at time.Time, succ int, succAt time.Time) bool {
	list := c.byCase[caseID]
	i := searchTime(list, at)
	if i >= len(list) || !list[i].EventTime.Equal(at) {
		return false
	}
	nb := list[i]
	if nb.Succ >= 0 {
		return false
	}
	nb.Succ = succ
	nb.SuccTime = succAt
	return true
}

// HasOpenSuccessor reports whether any stored event still lacks a successor,
// i.e. this activity has been observed as the last event of some case so far.
func (c *Collection) HasOpenSuccessor() bool {
	for _, list := range c.byCase {
		for _, nb := range list {
			if nb.Succ < 0 {
				return true
			}
		}
	}
	return false
}

// CaseCount returns the number of cases with at least one stored event.
func (c *Collection) CaseCount() int { return len(c.byCase) }

func searchTime(list []*Neighborhood, at time.Time) int {
	return sort.Search(len(list), func(i int) bool {
		return !list[i].EventTime.Before(at)
	})
}
