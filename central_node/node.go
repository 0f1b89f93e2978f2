// Package central_node implements the coordinator: it polls every activity
// node for its local summary, merges them, runs the Alpha pair synthesis on
// the merged footprint, and serves the resulting Petri net.
package central_node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/ds-kiel/edgealpha/activity_node"
	"github.com/ds-kiel/edgealpha/alpha"
	"github.com/ds-kiel/edgealpha/peering"
	"github.com/ds-kiel/edgealpha/petri"
)

// Options configures the central node.
type Options struct {
	ID int
	// ActivityAddrs are the dial addresses of all activity nodes, indexed
	// by activity id.
	ActivityAddrs []string
	// ActivityNames maps activity ids to their labels.
	ActivityNames map[int]string
	Client        *peering.Client
	Logger        *log.Logger
}

// Node is the coordinator. It holds no mining state of its own; every
// /process_model request re-polls the fleet.
type Node struct {
	id     int
	addrs  []string
	names  map[int]string
	client *peering.Client
	logger *log.Logger
	hub    *watchHub
}

// New assembles the central node.
func New(opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, fmt.Sprintf("[central_node %d] ", opts.ID), log.LstdFlags)
	}
	return &Node{
		id:     opts.ID,
		addrs:  opts.ActivityAddrs,
		names:  opts.ActivityNames,
		client: opts.Client,
		logger: logger,
		hub:    newWatchHub(),
	}
}

// Handler returns the node's HTTP surface.
func (n *Node) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/process_model", n.handleProcessModel).Methods(http.MethodGet)
	router.HandleFunc("/model_updates", n.handleModelUpdates).Methods(http.MethodGet)
	router.HandleFunc("/ping", n.handlePing).Methods(http.MethodGet)
	return router
}

// handleProcessModel polls the fleet, merges, synthesizes, and returns the
// discovered net as a PNML string. This is the only endpoint allowed to
// surface an error to the outside.
func (n *Node) handleProcessModel(w http.ResponseWriter, r *http.Request) {
	n.logger.Printf("process model requested")

	summaries, reached := n.collect(r.Context())
	if reached == 0 {
		http.Error(w, "no activity node reachable", http.StatusBadGateway)
		return
	}

	merged := mergeSummaries(len(n.addrs), summaries)
	rel := alpha.Derive(merged.Footprint)
	pairs := alpha.Pairs(rel)

	net, err := n.buildNet(pairs, merged)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pnml, err := net.PNML()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"net": pnml}); err != nil {
		n.logger.Printf("process_model: encode: %v", err)
		return
	}
	n.hub.publish(pnml)
}

// collect fetches /current_data from every activity node concurrently.
// A node that cannot be reached or decoded is skipped; mining continues on
// whatever arrived. The second return is the number of usable summaries.
func (n *Node) collect(ctx context.Context) ([]*activity_node.Summary, int) {
	summaries := make([]*activity_node.Summary, len(n.addrs))

	group, groupCtx := errgroup.WithContext(ctx)
	for id, addr := range n.addrs {
		id, addr := id, addr
		group.Go(func() error {
			body, err := n.client.Get(groupCtx, addr, "/current_data", nil)
			if err != nil {
				n.logger.Printf("collect node %d: %v", id, err)
				return nil
			}
			var s activity_node.Summary
			if err := json.Unmarshal(body, &s); err != nil {
				n.logger.Printf("collect node %d: bad summary: %v", id, err)
				return nil
			}
			if !s.Valid(len(n.addrs)) {
				n.logger.Printf("collect node %d: summary dimensions do not fit a fleet of %d", id, len(n.addrs))
				return nil
			}
			summaries[id] = &s
			return nil
		})
	}
	_ = group.Wait()

	reached := 0
	for _, s := range summaries {
		if s != nil {
			reached++
		}
	}
	return summaries, reached
}

// buildNet lays out the Petri net: one labeled transition per activity, one
// place per surviving pair with arcs from its A side and into its B side,
// and the source/sink places wired to start and end activities.
func (n *Node) buildNet(pairs []alpha.Pair, merged *mergedData) (*petri.Net, error) {
	net := petri.NewNet("distributed_alpha_result")

	if err := net.AddPlace("source", "source"); err != nil {
		return nil, err
	}
	if err := net.AddPlace("sink", "sink"); err != nil {
		return nil, err
	}
	net.Initial["source"] = 1
	net.Final["sink"] = 1

	transition := func(activity int) string { return "t" + strconv.Itoa(activity) }
	for activity := 0; activity < len(n.addrs); activity++ {
		if err := net.AddTransition(transition(activity), n.activityName(activity)); err != nil {
			return nil, err
		}
	}

	for i, pair := range pairs {
		placeID := "p" + strconv.Itoa(i)
		if err := net.AddPlace(placeID, n.pairName(pair)); err != nil {
			return nil, err
		}
		for _, a := range pair.A.Members() {
			if err := net.AddArc(transition(a), placeID); err != nil {
				return nil, err
			}
		}
		for _, b := range pair.B.Members() {
			if err := net.AddArc(placeID, transition(b)); err != nil {
				return nil, err
			}
		}
	}

	for _, start := range merged.Starts {
		if err := net.AddArc("source", transition(start)); err != nil {
			return nil, err
		}
	}
	for _, end := range merged.Ends {
		if err := net.AddArc(transition(end), "sink"); err != nil {
			return nil, err
		}
	}
	return net, nil
}

func (n *Node) activityName(activity int) string {
	if name, ok := n.names[activity]; ok {
		return name
	}
	return "activity_" + strconv.Itoa(activity)
}

// pairName renders a pair as ({a,b},{c}) with activity labels sorted, so
// place names are stable across polls.
func (n *Node) pairName(pair alpha.Pair) string {
	side := func(s alpha.Set) string {
		names := make([]string, 0, len(s.Members()))
		for _, id := range s.Members() {
			names = append(names, n.activityName(id))
		}
		sort.Strings(names)
		return "{" + strings.Join(names, ",") + "}"
	}
	return "(" + side(pair.A) + "," + side(pair.B) + ")"
}

func (n *Node) handlePing(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "pong")
}
