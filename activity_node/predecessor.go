package activity_node

import (
	"context"
	"sort"
	"sync"
	"time"
)

// predecessor identifies the event chosen as the direct predecessor of the
// event being ingested.
type predecessor struct {
	activity int
	at       time.Time
	stamp    string
}

// fleet is the slice of node capability the strategies need: who we are, how
// many activity nodes exist, how to probe one of them for a candidate, and
// how to tell the winner it was chosen. Probing self must not cost a network
// call; the bool result reports whether one was spent.
type fleet interface {
	selfID() int
	size() int
	probe(ctx context.Context, id int, caseID, stamp string) (*predecessor, bool)
	notifyChosen(ctx context.Context, caseID, reqStamp string, chosen *predecessor) bool
}

// strategy finds the unique predecessor event of (caseID, at) across the
// fleet, notifying the chosen peer as a side effect. A nil result means the
// event opens its case. The int reports peers asked over the network.
type strategy interface {
	findPredecessor(ctx context.Context, caseID string, at time.Time, stamp string) (*predecessor, int)
}

// pickLatest selects the candidate with the greatest timestamp strictly
// before the requester's own. Ties cannot occur when per-case timestamps are
// unique; should one slip through, the lowest activity id wins to keep the
// choice deterministic.
func pickLatest(candidates []*predecessor, before time.Time) *predecessor {
	var best *predecessor
	for _, cand := range candidates {
		if cand == nil || !cand.at.Before(before) {
			continue
		}
		switch {
		case best == nil, cand.at.After(best.at):
			best = cand
		case cand.at.Equal(best.at) && cand.activity < best.activity:
			best = cand
		}
	}
	return best
}

// baselineStrategy asks every activity node exactly once and keeps the
// latest candidate. Simple, and always O(fleet) requests per event.
type baselineStrategy struct {
	fleet fleet
}

func newBaselineStrategy(f fleet) *baselineStrategy {
	return &baselineStrategy{fleet: f}
}

func (s *baselineStrategy) findPredecessor(ctx context.Context, caseID string, at time.Time, stamp string) (*predecessor, int) {
	asked := 0
	var candidates []*predecessor
	for id := 0; id < s.fleet.size(); id++ {
		cand, networked := s.fleet.probe(ctx, id, caseID, stamp)
		if networked {
			asked++
		}
		if cand != nil {
			candidates = append(candidates, cand)
		}
	}

	best := pickLatest(candidates, at)
	if best == nil {
		return nil, asked
	}
	s.fleet.notifyChosen(ctx, caseID, stamp, best)
	return best, asked
}

// frequentStrategy probes the historically most frequent predecessors first
// and stops at the first hit, falling back to the rest of the fleet only
// when none of them answers. Processes are rarely uniform, so the common
// case settles in O(1) requests. The first hit is not necessarily the
// latest-timestamp candidate; any valid direct succession feeds the
// footprint matrix equally.
type frequentStrategy struct {
	fleet  fleet
	fanout int

	mu     sync.Mutex
	counts map[int]int
}

// newFrequentStrategy caps the first probing round at fanout entries of the
// frequency list; fanout <= 0 means the whole fleet.
func newFrequentStrategy(f fleet, fanout int) *frequentStrategy {
	if fanout <= 0 {
		fanout = f.size()
	}
	return &frequentStrategy{
		fleet:  f,
		fanout: fanout,
		counts: map[int]int{},
	}
}

func (s *frequentStrategy) findPredecessor(ctx context.Context, caseID string, at time.Time, stamp string) (*predecessor, int) {
	order := s.probeOrder()
	asked := 0
	probed := map[int]bool{}

	// Round one: the likely predecessors, own events first.
	var found *predecessor
	for _, id := range order {
		cand, networked := s.fleet.probe(ctx, id, caseID, stamp)
		if networked {
			asked++
		}
		probed[id] = true
		if cand != nil {
			found = cand
			break
		}
	}

	if found != nil {
		s.fleet.notifyChosen(ctx, caseID, stamp, found)
		s.bump(found.activity)
		return found, asked
	}

	// Round two: everyone not asked yet, latest candidate wins.
	var candidates []*predecessor
	for id := 0; id < s.fleet.size(); id++ {
		if probed[id] {
			continue
		}
		cand, networked := s.fleet.probe(ctx, id, caseID, stamp)
		if networked {
			asked++
		}
		if cand != nil {
			candidates = append(candidates, cand)
		}
	}

	best := pickLatest(candidates, at)
	if best == nil {
		return nil, asked
	}
	s.fleet.notifyChosen(ctx, caseID, stamp, best)
	s.bump(best.activity)
	return best, asked
}

// probeOrder takes the top entries of the frequency ranking and moves this
// node's own id to the front, since checking the local store is free.
func (s *frequentStrategy) probeOrder() []int {
	s.mu.Lock()
	ranked := make([]int, 0, len(s.counts))
	for id := range s.counts {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if s.counts[ranked[i]] != s.counts[ranked[j]] {
			return s.counts[ranked[i]] > s.counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	s.mu.Unlock()

	if len(ranked) > s.fanout {
		ranked = ranked[:s.fanout]
	}

	self := s.fleet.selfID()
	order := make([]int, 0, len(ranked)+1)
	order = append(order, self)
	for _, id := range ranked {
		if id != self {
			order = append(order, id)
		}
	}
	return order
}

func (s *frequentStrategy) bump(activity int) {
	s.mu.Lock()
	s.counts[activity]++
	s.mu.Unlock()
}
