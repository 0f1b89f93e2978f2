package activity_node

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeFleet scripts per-node candidates and records probe order.
type fakeFleet struct {
	self       int
	n          int
	candidates map[int]*predecessor
	probes     []int
	notified   []*predecessor
}

func (f *fakeFleet) selfID() int { return f.self }
func (f *fakeFleet) size() int   { return f.n }

func (f *fakeFleet) probe(_ context.Context, id int, _, _ string) (*predecessor, bool) {
	f.probes = append(f.probes, id)
	return f.candidates[id], id != f.self
}

func (f *fakeFleet) notifyChosen(_ context.Context, _, _ string, chosen *predecessor) bool {
	f.notified = append(f.notified, chosen)
	return true
}

func TestBaselineStrategy(t *testing.T) {
	Convey("Given a fleet with two candidates", t, func() {
		f := &fakeFleet{
			self: 1,
			n:    4,
			candidates: map[int]*predecessor{
				0: {activity: 0, at: ts(3), stamp: stamp(3)},
				2: {activity: 2, at: ts(5), stamp: stamp(5)},
			},
		}
		strat := newBaselineStrategy(f)

		Convey("Every node is probed once and the latest candidate wins", func() {
			pred, asked := strat.findPredecessor(context.Background(), "c1", ts(8), stamp(8))

			So(pred, ShouldNotBeNil)
			So(pred.activity, ShouldEqual, 2)
			So(f.probes, ShouldResemble, []int{0, 1, 2, 3})
			So(asked, ShouldEqual, 3) // self-probe is free
			So(f.notified, ShouldHaveLength, 1)
			So(f.notified[0].activity, ShouldEqual, 2)
		})

		Convey("Candidates at or after the requester are ignored", func() {
			pred, _ := strat.findPredecessor(context.Background(), "c1", ts(4), stamp(4))
			So(pred, ShouldNotBeNil)
			So(pred.activity, ShouldEqual, 0)
		})

		Convey("No candidate means a case start", func() {
			f.candidates = map[int]*predecessor{}
			pred, asked := strat.findPredecessor(context.Background(), "c1", ts(8), stamp(8))
			So(pred, ShouldBeNil)
			So(asked, ShouldEqual, 3)
			So(f.notified, ShouldBeEmpty)
		})
	})
}

func TestFrequentStrategy(t *testing.T) {
	Convey("Given a frequent-first strategy", t, func() {
		f := &fakeFleet{
			self: 1,
			n:    4,
			candidates: map[int]*predecessor{
				2: {activity: 2, at: ts(5), stamp: stamp(5)},
			},
		}
		strat := newFrequentStrategy(f, 0)

		Convey("With no history, self is probed first and the fallback sweeps the rest", func() {
			pred, asked := strat.findPredecessor(context.Background(), "c1", ts(8), stamp(8))

			So(pred, ShouldNotBeNil)
			So(pred.activity, ShouldEqual, 2)
			So(f.probes[0], ShouldEqual, 1)
			// Fleet swept at most once.
			So(len(f.probes), ShouldBeLessThanOrEqualTo, 4)
			So(asked, ShouldEqual, 3)
		})

		Convey("A learned predecessor is probed early and short-circuits the sweep", func() {
			_, _ = strat.findPredecessor(context.Background(), "c1", ts(8), stamp(8))
			f.probes = nil

			_, asked := strat.findPredecessor(context.Background(), "c2", ts(9), stamp(9))
			So(f.probes, ShouldResemble, []int{1, 2})
			So(asked, ShouldEqual, 1)
		})

		Convey("A fanout of 1 keeps round one to self plus the single top entry", func() {
			capped := newFrequentStrategy(f, 1)
			capped.bump(3)
			capped.bump(3)
			capped.bump(2)

			f.probes = nil
			pred, _ := capped.findPredecessor(context.Background(), "c1", ts(8), stamp(8))
			So(pred, ShouldNotBeNil)
			// Round one: self, then top-1 (node 3); round two sweeps 0 and 2.
			So(f.probes[:2], ShouldResemble, []int{1, 3})
		})

		Convey("No candidate anywhere means a case start", func() {
			f.candidates = map[int]*predecessor{}
			pred, _ := strat.findPredecessor(context.Background(), "c1", ts(8), stamp(8))
			So(pred, ShouldBeNil)
			So(f.notified, ShouldBeEmpty)
		})
	})
}

func TestPickLatest(t *testing.T) {
	Convey("pickLatest prefers the greatest timestamp before the bound", t, func() {
		a := &predecessor{activity: 3, at: ts(2)}
		b := &predecessor{activity: 0, at: ts(4)}
		c := &predecessor{activity: 1, at: ts(9)}

		So(pickLatest([]*predecessor{a, b, c}, ts(5)), ShouldEqual, b)
		So(pickLatest([]*predecessor{a}, ts(2)), ShouldBeNil)
		So(pickLatest(nil, ts(5)), ShouldBeNil)

		Convey("Ties break toward the lowest activity id", func() {
			x := &predecessor{activity: 2, at: ts(4)}
			So(pickLatest([]*predecessor{b, x}, ts(5)), ShouldEqual, b)
			So(pickLatest([]*predecessor{x, b}, ts(5)), ShouldEqual, b)
		})
	})
}
