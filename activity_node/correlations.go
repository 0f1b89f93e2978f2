package activity_node

import "github.com/ds-kiel/edgealpha/matrix"

// Correlations is this node's case-independent aggregate: its row of the
// fleet-wide footprint matrix, its start-activity flag, and the sequence
// counter that versions both. Only the slots belonging to this node's own
// activity id are ever mutated here; the rest stay zero and are filled in by
// peers' summaries at merge time.
type Correlations struct {
	id        int
	footprint *matrix.Matrix
	seq       *matrix.Vector
	isStart   *matrix.Vector
}

// NewCorrelations sizes the aggregate for a fleet of n activity nodes.
func NewCorrelations(id, n int) *Correlations {
	return &Correlations{
		id:        id,
		footprint: matrix.NewMatrix(n, n),
		seq:       matrix.NewVector(n),
		isStart:   matrix.NewVector(n),
	}
}

// AddDirectSuccession counts one observation of this activity being directly
// followed by succ, bumping the row's version. Only the node that sensed the
// predecessor event may record the succession.
func (c *Correlations) AddDirectSuccession(succ int) {
	c.footprint.Incr(c.id, succ)
	c.seq.Incr(c.id)
}

// MarkStart flips this activity's start flag. Re-marking is a no-op and does
// not advance the version.
func (c *Correlations) MarkStart() {
	if c.isStart.At(c.id) != 0 {
		return
	}
	c.isStart.Set(c.id, 1)
	c.seq.Incr(c.id)
}

// Successions returns how often this activity was directly followed by succ.
func (c *Correlations) Successions(succ int) int64 {
	return c.footprint.At(c.id, succ)
}

// Seq returns this node's current version counter.
func (c *Correlations) Seq() int64 { return c.seq.At(c.id) }

// IsStart reports whether this activity opened any case.
func (c *Correlations) IsStart() bool { return c.isStart.At(c.id) != 0 }

// FootprintSnapshot returns a detached copy of the footprint matrix.
func (c *Correlations) FootprintSnapshot() *matrix.Matrix { return c.footprint.Clone() }

// SeqSnapshot returns a detached copy of the version vector.
func (c *Correlations) SeqSnapshot() *matrix.Vector { return c.seq.Clone() }

// StartSnapshot returns a detached copy of the start-flag vector.
func (c *Correlations) StartSnapshot() *matrix.Vector { return c.isStart.Clone() }
