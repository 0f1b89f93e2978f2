package petri

import (
	"bytes"
	"encoding/xml"
	"sort"
	"strconv"
)

// The PNML subset emitted here: one net, one page, places with an optional
// initial marking, labeled transitions, arcs, and a finalmarkings block for
// the final marking. Enough for a downstream importer to rebuild the model.

type pnmlText struct {
	Text string `xml:"text"`
}

type pnmlPlace struct {
	ID      string    `xml:"id,attr"`
	Name    *pnmlText `xml:"name,omitempty"`
	Initial *pnmlText `xml:"initialMarking,omitempty"`
}

type pnmlTransition struct {
	ID   string    `xml:"id,attr"`
	Name *pnmlText `xml:"name,omitempty"`
}

type pnmlArc struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

type pnmlFinalPlace struct {
	IDRef  string `xml:"idref,attr"`
	Tokens int    `xml:"text"`
}

type pnmlFinalMarking struct {
	Places []pnmlFinalPlace `xml:"place"`
}

type pnmlFinalMarkings struct {
	Markings []pnmlFinalMarking `xml:"marking"`
}

type pnmlPage struct {
	ID          string           `xml:"id,attr"`
	Places      []pnmlPlace      `xml:"place"`
	Transitions []pnmlTransition `xml:"transition"`
	Arcs        []pnmlArc        `xml:"arc"`
}

type pnmlNet struct {
	ID    string             `xml:"id,attr"`
	Type  string             `xml:"type,attr"`
	Page  pnmlPage           `xml:"page"`
	Final *pnmlFinalMarkings `xml:"finalmarkings,omitempty"`
}

type pnmlRoot struct {
	XMLName xml.Name `xml:"pnml"`
	Net     pnmlNet  `xml:"net"`
}

// PNML serializes the net to a PNML document string.
func (n *Net) PNML() (string, error) {
	page := pnmlPage{ID: "page0"}

	for _, p := range n.Places {
		wp := pnmlPlace{ID: p.ID}
		if p.Name != "" {
			wp.Name = &pnmlText{Text: p.Name}
		}
		if tokens := n.Initial[p.ID]; tokens > 0 {
			wp.Initial = &pnmlText{Text: strconv.Itoa(tokens)}
		}
		page.Places = append(page.Places, wp)
	}
	for _, t := range n.Transitions {
		wt := pnmlTransition{ID: t.ID}
		if t.Label != "" {
			wt.Name = &pnmlText{Text: t.Label}
		}
		page.Transitions = append(page.Transitions, wt)
	}
	for _, a := range n.Arcs {
		page.Arcs = append(page.Arcs, pnmlArc{ID: a.ID, Source: a.Source, Target: a.Target})
	}

	root := pnmlRoot{
		Net: pnmlNet{
			ID:   n.Name,
			Type: "http://www.pnml.org/version-2009/grammar/pnmlcoremodel",
			Page: page,
		},
	}

	if len(n.Final) > 0 {
		final := pnmlFinalMarking{}
		ids := make([]string, 0, len(n.Final))
		for id := range n.Final {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			final.Places = append(final.Places, pnmlFinalPlace{IDRef: id, Tokens: n.Final[id]})
		}
		root.Net.Final = &pnmlFinalMarkings{Markings: []pnmlFinalMarking{final}}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}
