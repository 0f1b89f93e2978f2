package activity_node

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCorrelations(t *testing.T) {
	Convey("Given a fresh aggregate for node 1 of 3", t, func() {
		corr := NewCorrelations(1, 3)

		Convey("Direct successions count on the own row and version it", func() {
			corr.AddDirectSuccession(2)
			corr.AddDirectSuccession(2)
			corr.AddDirectSuccession(0)

			So(corr.Successions(2), ShouldEqual, 2)
			So(corr.Successions(0), ShouldEqual, 1)
			So(corr.Seq(), ShouldEqual, 3)

			fm := corr.FootprintSnapshot()
			So(fm.At(1, 2), ShouldEqual, 2)
			So(fm.At(0, 2), ShouldEqual, 0)
		})

		Convey("MarkStart flips once and versions once", func() {
			So(corr.IsStart(), ShouldBeFalse)
			corr.MarkStart()
			So(corr.IsStart(), ShouldBeTrue)
			So(corr.Seq(), ShouldEqual, 1)

			corr.MarkStart()
			So(corr.Seq(), ShouldEqual, 1)
		})

		Convey("Snapshots are detached from live state", func() {
			fm := corr.FootprintSnapshot()
			seq := corr.SeqSnapshot()
			corr.AddDirectSuccession(0)
			So(fm.At(1, 0), ShouldEqual, 0)
			So(seq.At(1), ShouldEqual, 0)
		})
	})
}

func TestStartActivities(t *testing.T) {
	Convey("Given a start set wired to its aggregate", t, func() {
		corr := NewCorrelations(0, 2)
		starts := NewStartActivities(corr)

		Convey("The first case flips the flag and bumps the version", func() {
			So(starts.Add("c1"), ShouldBeTrue)
			So(starts.Contains("c1"), ShouldBeTrue)
			So(corr.IsStart(), ShouldBeTrue)
			So(corr.Seq(), ShouldEqual, 1)
		})

		Convey("Re-adding a case is idempotent and does not bump the version", func() {
			So(starts.Add("c1"), ShouldBeTrue)
			So(starts.Add("c1"), ShouldBeFalse)
			So(starts.Len(), ShouldEqual, 1)
			So(corr.Seq(), ShouldEqual, 1)
		})

		Convey("Further cases join the set without another version bump", func() {
			So(starts.Add("c1"), ShouldBeTrue)
			So(starts.Add("c2"), ShouldBeTrue)
			So(starts.Len(), ShouldEqual, 2)
			So(corr.Seq(), ShouldEqual, 1)
		})
	})
}
