package petri

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNetConstruction(t *testing.T) {
	Convey("Given an empty net", t, func() {
		net := NewNet("result")

		Convey("When places, transitions and arcs are added", func() {
			So(net.AddPlace("source", "source"), ShouldBeNil)
			So(net.AddPlace("sink", "sink"), ShouldBeNil)
			So(net.AddTransition("t0", "register"), ShouldBeNil)
			So(net.AddArc("source", "t0"), ShouldBeNil)
			So(net.AddArc("t0", "sink"), ShouldBeNil)

			So(net.HasArc("source", "t0"), ShouldBeTrue)
			So(net.HasArc("t0", "source"), ShouldBeFalse)
		})

		Convey("When a duplicate node id is added", func() {
			So(net.AddPlace("p", ""), ShouldBeNil)
			So(net.AddTransition("p", "x"), ShouldNotBeNil)
			So(net.AddPlace("p", ""), ShouldNotBeNil)
		})

		Convey("When an arc does not alternate place and transition", func() {
			So(net.AddPlace("p1", ""), ShouldBeNil)
			So(net.AddPlace("p2", ""), ShouldBeNil)
			So(net.AddArc("p1", "p2"), ShouldNotBeNil)
			So(net.AddArc("p1", "nope"), ShouldNotBeNil)
		})
	})
}

func TestPNML(t *testing.T) {
	Convey("Given a minimal linear net", t, func() {
		net := NewNet("miner_result")
		So(net.AddPlace("source", "source"), ShouldBeNil)
		So(net.AddPlace("sink", "sink"), ShouldBeNil)
		So(net.AddTransition("t0", "approve_invoice"), ShouldBeNil)
		So(net.AddArc("source", "t0"), ShouldBeNil)
		So(net.AddArc("t0", "sink"), ShouldBeNil)
		net.Initial["source"] = 1
		net.Final["sink"] = 1

		Convey("When serialized to PNML", func() {
			doc, err := net.PNML()
			So(err, ShouldBeNil)

			So(doc, ShouldContainSubstring, `<pnml>`)
			So(doc, ShouldContainSubstring, `<net id="miner_result"`)
			So(doc, ShouldContainSubstring, `<place id="source">`)
			So(doc, ShouldContainSubstring, `<initialMarking>`)
			So(doc, ShouldContainSubstring, `<transition id="t0">`)
			So(doc, ShouldContainSubstring, `approve_invoice`)
			So(doc, ShouldContainSubstring, `source="t0" target="sink"`)
			So(doc, ShouldContainSubstring, `<finalmarkings>`)
			So(strings.Count(doc, "<arc "), ShouldEqual, 2)
		})
	})
}
