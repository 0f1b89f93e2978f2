// Package activity_node implements the sensor node owning one activity of
// the observed process. It ingests that activity's events, locates each
// event's predecessor across the fleet, and aggregates the local share of
// the footprint matrix for the central node to collect.
package activity_node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ds-kiel/edgealpha/config"
	"github.com/ds-kiel/edgealpha/metrics"
	"github.com/ds-kiel/edgealpha/peering"
)

// eventRef is the wire form of a candidate event, as answered on
// /case_event_data.
type eventRef struct {
	CaseID     string `json:"case_id"`
	ActivityID int    `json:"activity_id"`
	Timestamp  string `json:"timestamp"`
}

// Options configures an activity node.
type Options struct {
	ID           int
	ActivityName string
	// FleetSize is the number of activity nodes (the central node not
	// included); it is also the dimension of the footprint matrix.
	FleetSize int
	// AddrOf resolves an activity id to its node's dial address.
	AddrOf func(id int) string
	Client *peering.Client
	// Strategy is config.StrategyBaseline or config.StrategyFrequent.
	Strategy    string
	ProbeFanout int
	// Metrics may be nil, in which case no per-event lines are written.
	Metrics *metrics.Writer
	Logger  *log.Logger
}

// Node is one activity sensor. One mutex serializes every mutation of the
// per-case store, the start set and the correlation aggregate; it is never
// held across an outbound request.
type Node struct {
	id       int
	name     string
	fleetLen int
	addrOf   func(id int) string
	client   *peering.Client
	strat    strategy
	metrics  *metrics.Writer
	logger   *log.Logger

	mu        sync.Mutex
	neighbors *Collection
	starts    *StartActivities
	corr      *Correlations
}

// New assembles an activity node.
func New(opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, fmt.Sprintf("[activity_node %d] ", opts.ID), log.LstdFlags)
	}

	corr := NewCorrelations(opts.ID, opts.FleetSize)
	n := &Node{
		id:        opts.ID,
		name:      opts.ActivityName,
		fleetLen:  opts.FleetSize,
		addrOf:    opts.AddrOf,
		client:    opts.Client,
		metrics:   opts.Metrics,
		logger:    logger,
		neighbors: NewCollection(),
		starts:    NewStartActivities(corr),
		corr:      corr,
	}

	switch opts.Strategy {
	case config.StrategyBaseline:
		n.strat = newBaselineStrategy(n)
	default:
		n.strat = newFrequentStrategy(n, opts.ProbeFanout)
	}
	return n
}

// Handler returns the node's HTTP surface.
func (n *Node) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/trigger_event", n.handleTriggerEvent).Methods(http.MethodPost)
	router.HandleFunc("/case_event_data", n.handleCaseEventData).Methods(http.MethodGet)
	router.HandleFunc("/get_chosen", n.handleGetChosen).Methods(http.MethodPost)
	router.HandleFunc("/current_data", n.handleCurrentData).Methods(http.MethodGet)
	router.HandleFunc("/ping", n.handlePing).Methods(http.MethodGet)
	return router
}

// handleTriggerEvent ingests one event of this node's activity: find the
// predecessor across the fleet, then record the event locally. The state
// lock is taken only for the final mutation, never across the probing.
func (n *Node) handleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		n.refuse(w, "trigger_event: bad form: %v", err)
		return
	}
	caseID := r.PostForm.Get("case_id")
	rawActivity := r.PostForm.Get("activity_id")
	stamp := r.PostForm.Get("timestamp")
	if caseID == "" || rawActivity == "" || stamp == "" {
		n.refuse(w, "trigger_event: missing case_id, activity_id or timestamp")
		return
	}

	activity, err := strconv.Atoi(rawActivity)
	if err != nil {
		n.refuse(w, "trigger_event: activity_id %q: %v", rawActivity, err)
		return
	}
	if activity != n.id {
		// Not ours; log and drop, the fleet is best-effort.
		n.logger.Printf("trigger_event: activity %d is not mine, dropping", activity)
		return
	}

	at, err := parseStamp(stamp)
	if err != nil {
		n.refuse(w, "trigger_event: timestamp %q: %v", stamp, err)
		return
	}

	n.mu.Lock()
	duplicate := n.neighbors.Has(caseID, at)
	n.mu.Unlock()
	if duplicate {
		n.refuse(w, "trigger_event: case %s already has an event at %s", caseID, stamp)
		return
	}

	n.logger.Printf("case %s: activity %d triggered at %s", caseID, activity, stamp)

	pred, asked := n.strat.findPredecessor(r.Context(), caseID, at, stamp)

	n.mu.Lock()
	if pred == nil {
		n.starts.Add(caseID)
		err = n.neighbors.Add(caseID, stamp, at, -1, time.Time{})
	} else {
		err = n.neighbors.Add(caseID, stamp, at, pred.activity, pred.at)
	}
	n.mu.Unlock()
	if err != nil {
		n.refuse(w, "trigger_event: case %s at %s: %v", caseID, stamp, err)
		return
	}

	if n.metrics != nil {
		n.metrics.Record(caseID, n.id, stamp, asked)
	}
}

// handleCaseEventData answers a peer's predecessor probe. No candidate is
// an empty 200; errors are only for malformed requests.
func (n *Node) handleCaseEventData(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	caseID := query.Get("case_id")
	stamp := query.Get("timestamp")
	if caseID == "" || stamp == "" {
		n.refuse(w, "case_event_data: missing case_id or timestamp")
		return
	}
	reqAt, err := parseStamp(stamp)
	if err != nil {
		n.refuse(w, "case_event_data: timestamp %q: %v", stamp, err)
		return
	}

	n.mu.Lock()
	cand := n.neighbors.Candidate(caseID, reqAt)
	var ref *eventRef
	if cand != nil {
		ref = &eventRef{CaseID: caseID, ActivityID: n.id, Timestamp: cand.EventStamp}
	}
	n.mu.Unlock()

	if ref == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ref); err != nil {
		n.logger.Printf("case_event_data: encode: %v", err)
	}
}

// handleGetChosen records that this node's event at chosen_timestamp is the
// predecessor of the requester's event. This is the only writer of successor
// slots and of footprint counts.
func (n *Node) handleGetChosen(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		n.refuse(w, "get_chosen: bad form: %v", err)
		return
	}
	caseID := r.PostForm.Get("case_id")
	rawSucc := r.PostForm.Get("activity_id")
	reqStamp := r.PostForm.Get("req_timestamp")
	chosenStamp := r.PostForm.Get("chosen_timestamp")
	if caseID == "" || rawSucc == "" || reqStamp == "" || chosenStamp == "" {
		n.refuse(w, "get_chosen: missing field")
		return
	}

	succ, err := strconv.Atoi(rawSucc)
	if err != nil || succ < 0 || succ >= n.fleetLen {
		n.refuse(w, "get_chosen: activity_id %q out of range", rawSucc)
		return
	}
	reqAt, err := parseStamp(reqStamp)
	if err != nil {
		n.refuse(w, "get_chosen: req_timestamp %q: %v", reqStamp, err)
		return
	}
	chosenAt, err := parseStamp(chosenStamp)
	if err != nil {
		n.refuse(w, "get_chosen: chosen_timestamp %q: %v", chosenStamp, err)
		return
	}

	n.mu.Lock()
	assigned := n.neighbors.AssignSucc(caseID, chosenAt, succ, reqAt)
	if assigned {
		n.corr.AddDirectSuccession(succ)
	}
	n.mu.Unlock()

	if !assigned {
		n.logger.Printf("get_chosen: case %s event %s already has a successor or is unknown", caseID, chosenStamp)
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "%t", assigned)
}

// handleCurrentData exports the aggregate snapshot for the central node.
func (n *Node) handleCurrentData(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	summary := Summary{
		StartActivities: n.corr.StartSnapshot(),
		EndActivities:   []int{},
		SeqNumbers:      n.corr.SeqSnapshot(),
		Footprint:       n.corr.FootprintSnapshot(),
	}
	if n.neighbors.HasOpenSuccessor() {
		summary.EndActivities = []int{n.id}
	}
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&summary); err != nil {
		n.logger.Printf("current_data: encode: %v", err)
	}
}

func (n *Node) handlePing(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "pong")
}

// refuse logs and rejects a malformed request.
func (n *Node) refuse(w http.ResponseWriter, format string, args ...interface{}) {
	n.logger.Printf(format, args...)
	http.Error(w, fmt.Sprintf(format, args...), http.StatusBadRequest)
}

// --- fleet interface for the strategies ---

func (n *Node) selfID() int { return n.id }

func (n *Node) size() int { return n.fleetLen }

// probe asks node id for a predecessor candidate of (caseID, stamp). The
// own store is consulted directly under the lock; peers cost one request.
// An unreachable peer counts as having no candidate.
func (n *Node) probe(ctx context.Context, id int, caseID, stamp string) (*predecessor, bool) {
	if id == n.id {
		reqAt, err := parseStamp(stamp)
		if err != nil {
			return nil, false
		}
		n.mu.Lock()
		cand := n.neighbors.Candidate(caseID, reqAt)
		var pred *predecessor
		if cand != nil {
			pred = &predecessor{activity: n.id, at: cand.EventTime, stamp: cand.EventStamp}
		}
		n.mu.Unlock()
		return pred, false
	}

	body, err := n.client.Get(ctx, n.addrOf(id), "/case_event_data", url.Values{
		"case_id":   {caseID},
		"timestamp": {stamp},
	})
	if err != nil {
		n.logger.Printf("probe node %d: %v", id, err)
		return nil, true
	}
	if body == nil {
		return nil, true
	}

	var ref eventRef
	if err := json.Unmarshal(body, &ref); err != nil {
		n.logger.Printf("probe node %d: bad candidate: %v", id, err)
		return nil, true
	}
	at, err := parseStamp(ref.Timestamp)
	if err != nil {
		n.logger.Printf("probe node %d: bad candidate timestamp %q: %v", id, ref.Timestamp, err)
		return nil, true
	}
	return &predecessor{activity: ref.ActivityID, at: at, stamp: ref.Timestamp}, true
}

// notifyChosen tells the winning peer that its event precedes ours, so it
// can seal the successor slot and count the direct succession.
func (n *Node) notifyChosen(ctx context.Context, caseID, reqStamp string, chosen *predecessor) bool {
	body, err := n.client.PostForm(ctx, n.addrOf(chosen.activity), "/get_chosen", url.Values{
		"case_id":          {caseID},
		"activity_id":      {strconv.Itoa(n.id)},
		"req_timestamp":    {reqStamp},
		"chosen_timestamp": {chosen.stamp},
	})
	if err != nil {
		n.logger.Printf("notify node %d: %v", chosen.activity, err)
		return false
	}
	return string(body) == "true"
}

// Correlations exposes the aggregate for inspection in tests.
func (n *Node) Correlations() *Correlations { return n.corr }

func parseStamp(stamp string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, stamp)
}
