// Package engine drives a single area-of-interest index on a fixed
// tick interval, translating its raw enter/leave deltas into a single
// callback a session can turn into WebSocket broadcasts. It is the
// seam between the index packages (internal/aoi/squares,
// internal/aoi/cross), which know nothing about sessions, websockets,
// or logging, and the rest of the server, which knows nothing about
// cell buckets or coordinate lists.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sablecore/aoi-engine/internal/aoi"
	"github.com/sablecore/aoi-engine/internal/aoi/cross"
	"github.com/sablecore/aoi-engine/internal/aoi/squares"
	"github.com/sablecore/aoi-engine/internal/metrics"
)

// candidateSampler is implemented only by the cross variant: squares
// has no candidate-set concept, so the engine probes for it rather
// than requiring every variant to carry the method.
type candidateSampler interface {
	CandidateSetSizes() []int
}

// sensorCounter is implemented by both variants; kept as its own
// interface rather than folded into index so a future variant without
// a meaningful sensor count still satisfies index.
type sensorCounter interface {
	SensorCount() int
}

// Variant selects which index implementation an Engine drives.
type Variant string

const (
	VariantSquares Variant = "squares"
	VariantCross   Variant = "cross"
)

// index is the method set both internal/aoi/squares.Index and
// internal/aoi/cross.Index satisfy. An Engine is written against it so
// the variant choice is a construction-time decision, never a
// call-site one.
type index interface {
	AddPlayer(nuid aoi.Nuid, x, y, z float64)
	RemovePlayer(nuid aoi.Nuid)
	AddSensor(nuid, sensorID aoi.Nuid, radius float64)
	RemoveSensor(nuid, sensorID aoi.Nuid)
	UpdatePos(nuid aoi.Nuid, x, y, z float64)
	Tick() aoi.UpdateInfos
}

// Config selects and parameterizes an index variant and its tick rate.
type Config struct {
	Variant      Variant
	TickInterval time.Duration

	// SquaresCellSize is used only when Variant is VariantSquares. A
	// non-positive value falls back to squares.DefaultCellSize.
	SquaresCellSize float64

	// Cross is used only when Variant is VariantCross.
	Cross cross.Config
}

// UpdateFunc receives the raw per-tick deltas. It is called from the
// Engine's own goroutine and must not block for long.
type UpdateFunc func(aoi.UpdateInfos)

// Engine owns one index and the goroutine that ticks it. All index
// methods are safe to call concurrently from any goroutine; an
// internal mutex serializes them against the tick, since the
// underlying index itself assumes a single caller.
type Engine struct {
	idx      index
	variant  string
	interval time.Duration
	log      *zap.Logger
	onUpdate UpdateFunc

	mu sync.Mutex
}

// New constructs an Engine per cfg. Panics if cfg.Variant is unknown.
func New(cfg Config, log *zap.Logger, onUpdate UpdateFunc) *Engine {
	var idx index
	switch cfg.Variant {
	case VariantSquares:
		idx = squares.New(cfg.SquaresCellSize)
	case VariantCross:
		idx = cross.New(cfg.Cross)
	default:
		panic("engine: unknown index variant " + string(cfg.Variant))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		idx:      idx,
		variant:  string(cfg.Variant),
		interval: cfg.TickInterval,
		log:      log,
		onUpdate: onUpdate,
	}
}

func (e *Engine) AddPlayer(nuid aoi.Nuid, x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx.AddPlayer(nuid, x, y, z)
}

func (e *Engine) RemovePlayer(nuid aoi.Nuid) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx.RemovePlayer(nuid)
}

func (e *Engine) AddSensor(nuid, sensorID aoi.Nuid, radius float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.sensorCount()
	e.idx.AddSensor(nuid, sensorID, radius)
	metrics.AoiSensors.Add(float64(e.sensorCount() - before))
}

func (e *Engine) RemoveSensor(nuid, sensorID aoi.Nuid) {
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.sensorCount()
	e.idx.RemoveSensor(nuid, sensorID)
	metrics.AoiSensors.Add(float64(e.sensorCount() - before))
}

// sensorCount reports the index's current sensor count, or 0 for an
// index variant that doesn't track one (there is none today, but the
// interface probe keeps this from being a hard requirement).
func (e *Engine) sensorCount() int {
	if counter, ok := e.idx.(sensorCounter); ok {
		return counter.SensorCount()
	}
	return 0
}

func (e *Engine) UpdatePos(nuid aoi.Nuid, x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idx.UpdatePos(nuid, x, y, z)
}

// Run ticks the index every interval until ctx is cancelled. A panic
// raised inside a single tick (an invariant breach in the index) is
// recovered and logged rather than taking the whole process down,
// since one session's bad state should not kill every other session's
// engine sharing the process.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("aoi tick panicked, dropping this tick's updates", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	updates := e.tickLocked()
	metrics.AoiTickDuration.WithLabelValues(e.variant).Observe(time.Since(start).Seconds())

	if len(updates) == 0 {
		return
	}
	e.onUpdate(updates)
}

// tickLocked runs the index's Tick and its observability sampling
// under e.mu. Scoped to its own defer so the mutex is released even if
// Tick or CandidateSetSizes panics (an aoi.Invariant failure on a
// corrupted index), instead of staying locked forever and deadlocking
// every later call on this Engine.
func (e *Engine) tickLocked() aoi.UpdateInfos {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.sensorCount()
	updates := e.idx.Tick()
	metrics.AoiSensors.Add(float64(e.sensorCount() - before))
	if sampler, ok := e.idx.(candidateSampler); ok {
		for _, size := range sampler.CandidateSetSizes() {
			metrics.AoiCandidateSetSize.Observe(float64(size))
		}
	}
	return updates
}
