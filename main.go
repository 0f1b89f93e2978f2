/*
EdgeAlpha runs distributed process discovery over a fleet of activity
sensor nodes. Every node senses exactly one activity of the observed
process; events arrive as HTTP requests, each node resolves the
predecessor of its events by asking its peers, and a single central node
merges the per-node summaries into a Petri net on demand.

One binary serves both roles: the process whose SERVER_ID names the last
entry of SERVER_NAME_LIST becomes the central node, every other id runs
the activity node for that activity.
*/
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/ds-kiel/edgealpha/activity_node"
	"github.com/ds-kiel/edgealpha/central_node"
	"github.com/ds-kiel/edgealpha/config"
	"github.com/ds-kiel/edgealpha/metrics"
	"github.com/ds-kiel/edgealpha/peering"
)

func runApp() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log.Printf("resolved configuration:\n%s", cfg.Dump())

	client := peering.NewClient(cfg.Tuning.RPCTimeout)

	var handler http.Handler
	if cfg.IsCentral() {
		log.Printf("#### starting central node %d on %s", cfg.ServerID, cfg.ListenAddr())
		node := central_node.New(central_node.Options{
			ID:            cfg.ServerID,
			ActivityAddrs: cfg.ActivityAddrs(),
			ActivityNames: cfg.ActivityNames,
			Client:        client,
		})
		handler = node.Handler()
	} else {
		log.Printf("#### starting activity node %d (%s) on %s", cfg.ServerID, cfg.ActivityName, cfg.ListenAddr())

		done := make(chan struct{})
		defer close(done)
		writer, err := metrics.NewWriter(done, cfg.MetricPath(), cfg.Tuning.MetricFlush)
		if err != nil {
			return fmt.Errorf("metrics writer: %w", err)
		}

		node := activity_node.New(activity_node.Options{
			ID:           cfg.ServerID,
			ActivityName: cfg.ActivityName,
			FleetSize:    cfg.ActivityCount(),
			AddrOf:       cfg.Addr,
			Client:       client,
			Strategy:     cfg.Tuning.Strategy,
			ProbeFanout:  cfg.Tuning.ProbeFanout,
			Metrics:      writer,
		})
		handler = node.Handler()
	}

	if err := http.ListenAndServe(cfg.ListenAddr(), handler); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
