package mapview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-map/internal/model"
)

// MoveOrigin says who moved the camera, when the map library knows.
type MoveOrigin int

const (
	// OriginUnknown is used when the library cannot tell gestures from
	// programmatic moves. Pending flights are then matched by count.
	OriginUnknown MoveOrigin = iota
	OriginUser
	OriginProgrammatic
)

// DefaultQueryTimeout bounds a single bounds query.
const DefaultQueryTimeout = 8 * time.Second

// DefaultFlightTimeout is how long an unreported flight may absorb
// unknown-origin move-end events.
const DefaultFlightTimeout = 3 * time.Second

// ErrStaleResponse marks a bounds response superseded by a newer dispatch.
// It is logged and dropped, never returned to callers.
var ErrStaleResponse = eris.New("mapview: stale bounds response")

// ViewportControllerConfig tunes a ViewportController.
type ViewportControllerConfig struct {
	// QueryTimeout bounds each bounds query; expiry counts as a failure.
	QueryTimeout time.Duration

	// SettleDelay debounces move-end events. Zero dispatches immediately.
	SettleDelay time.Duration

	// FlightTimeout expires pending flights whose move-end never arrived.
	FlightTimeout time.Duration
}

// ViewportController owns the map camera. User gestures that settle trigger a
// bounds query; camera flights it issues itself do not.
type ViewportController struct {
	adapter MapAdapter
	querier BoundsQuerier
	store   *Store
	cfg     ViewportControllerConfig
	log     *zap.Logger

	generation atomic.Uint64
	commitMu   sync.Mutex

	now func() time.Time

	mu             sync.Mutex
	pendingFlights int
	flightDeadline time.Time
	settleTimer    *time.Timer
	listeners      []func(model.Viewport)

	inflight sync.WaitGroup
}

// NewViewportController creates a ViewportController.
func NewViewportController(adapter MapAdapter, querier BoundsQuerier, store *Store, cfg ViewportControllerConfig) *ViewportController {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.FlightTimeout <= 0 {
		cfg.FlightTimeout = DefaultFlightTimeout
	}
	return &ViewportController{
		adapter: adapter,
		querier: querier,
		store:   store,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "mapview.viewport")),
		now:     time.Now,
	}
}

// OnUserViewportSettled registers fn to run once per settled user gesture,
// with the viewport that will be queried.
func (c *ViewportController) OnUserViewportSettled(fn func(model.Viewport)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// FlyTo animates the camera to center. The move is flagged as programmatic so
// its move-end does not trigger a query. A flight whose move-end has not
// arrived within FlightTimeout no longer counts as pending.
func (c *ViewportController) FlyTo(center model.Coordinates, zoom float64) {
	c.mu.Lock()
	c.expireFlightsLocked()
	c.pendingFlights++
	c.flightDeadline = c.now().Add(c.cfg.FlightTimeout)
	c.mu.Unlock()
	c.adapter.SetCamera(center, zoom, true)
}

// NotifyMoveEnd is called by the map glue whenever the camera stops moving.
func (c *ViewportController) NotifyMoveEnd(ctx context.Context, origin MoveOrigin) {
	c.mu.Lock()
	c.expireFlightsLocked()
	switch {
	case origin == OriginProgrammatic:
		if c.pendingFlights > 0 {
			c.pendingFlights--
		}
		c.mu.Unlock()
		return
	case origin == OriginUnknown && c.pendingFlights > 0:
		c.pendingFlights--
		c.mu.Unlock()
		return
	}

	if c.cfg.SettleDelay <= 0 {
		c.mu.Unlock()
		c.settled(ctx)
		return
	}
	if c.settleTimer != nil {
		c.settleTimer.Stop()
	}
	c.settleTimer = time.AfterFunc(c.cfg.SettleDelay, func() { c.settled(ctx) })
	c.mu.Unlock()
}

// expireFlightsLocked forgets pending flights once the latest one is overdue.
// Maps that skip move-end for a no-op flight would otherwise swallow the next
// gesture.
func (c *ViewportController) expireFlightsLocked() {
	if c.pendingFlights == 0 || c.now().Before(c.flightDeadline) {
		return
	}
	c.log.Debug("expiring unreported camera flights", zap.Int("pending", c.pendingFlights))
	c.pendingFlights = 0
}

// Refresh queries the current viewport as if the user had just moved there.
// It is used for the initial load and after filter changes.
func (c *ViewportController) Refresh(ctx context.Context) {
	c.settled(ctx)
}

// Generation returns the tag of the most recently dispatched query.
func (c *ViewportController) Generation() uint64 {
	return c.generation.Load()
}

// Wait blocks until every dispatched query has completed or been discarded.
func (c *ViewportController) Wait() {
	c.inflight.Wait()
}

func (c *ViewportController) settled(ctx context.Context) {
	v := c.adapter.Bounds()
	filters := c.store.Filters()

	gen := c.generation.Add(1)

	c.mu.Lock()
	listeners := append([]func(model.Viewport){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.query(ctx, gen, v, filters)
	}()
}

func (c *ViewportController) query(ctx context.Context, gen uint64, v model.Viewport, f model.FilterCriteria) {
	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()

	fc, err := c.querier.QueryInBounds(qctx, v, f)

	// Check and commit under one lock: a response is applied only while its
	// generation is still the latest dispatched one.
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if latest := c.generation.Load(); gen != latest {
		c.log.Debug("discarding bounds response",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", latest),
			zap.Error(ErrStaleResponse),
		)
		return
	}

	if err != nil {
		fallback := model.FilterInBounds(c.store.All(), v, f)
		c.log.Warn("bounds query failed, filtering known listings locally",
			zap.Uint64("generation", gen),
			zap.Int("fallback_count", len(fallback)),
			zap.Error(err),
		)
		c.store.SetVisible(fallback, len(fallback), SourceFallback)
		return
	}
	c.store.SetVisible(fc.Features, fc.TotalCount, SourceServer)
}
