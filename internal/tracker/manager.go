package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/logger"
	mmetrics "shuttle-tracker/internal/metrics"
	"shuttle-tracker/internal/schedule"
)

// BoardPublisher ships a finished board to subscribers.
type BoardPublisher interface {
	PublishBoard(suffix string, v interface{}) error
}

// Manager owns the resident catalog and live snapshot and evaluates them on a
// fixed tick. Readers never block the tick: both are swapped as whole values.
type Manager struct {
	buf          *live.Buffer
	pub          BoardPublisher
	log          logger.Logger
	metrics      *mmetrics.Collector
	tickInterval time.Duration
	staleAfter   time.Duration
	tz           *time.Location
	now          func() time.Time

	cat   atomic.Pointer[catalog.Catalog]
	agg   atomic.Pointer[schedule.Aggregator]
	live  live.Store
	board atomic.Pointer[Board]

	tickMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a manager around cat. buf and pub may be nil, in which case
// the manager runs on the static schedule alone and keeps boards in memory.
func NewManager(cat *catalog.Catalog, buf *live.Buffer, pub BoardPublisher, log logger.Logger, metrics *mmetrics.Collector, tickInterval, staleAfter time.Duration, tz *time.Location) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	if tz == nil {
		tz = time.Local
	}
	m := &Manager{
		buf:          buf,
		pub:          pub,
		log:          log,
		metrics:      metrics,
		tickInterval: tickInterval,
		staleAfter:   staleAfter,
		tz:           tz,
		now:          time.Now,
	}
	m.SetCatalog(cat)
	return m
}

// SetCatalog installs a new catalog and rebuilds the arrival index for it.
func (m *Manager) SetCatalog(cat *catalog.Catalog) {
	agg := schedule.NewAggregator(cat.Contributions())
	m.agg.Store(agg)
	m.cat.Store(cat)
}

func (m *Manager) Catalog() *catalog.Catalog        { return m.cat.Load() }
func (m *Manager) Aggregator() *schedule.Aggregator { return m.agg.Load() }
func (m *Manager) Snapshot() *live.Snapshot         { return m.live.Load() }

// Board returns the board of the last tick, nil before the first one.
func (m *Manager) Board() *Board { return m.board.Load() }

// Now is the manager's clock in the service time zone.
func (m *Manager) Now() time.Time { return m.now().In(m.tz) }

// Start runs one tick immediately and then one per interval until ctx is
// cancelled or Stop is called.
func (m *Manager) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Tick(ctx)
		if m.tickInterval <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick(ctx)
			}
		}
	}()
}

func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Tick freezes the live buffer, binds feed route IDs it reveals, evaluates a
// board and publishes it.
func (m *Manager) Tick(ctx context.Context) *Board {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	if ctx.Err() != nil {
		return m.board.Load()
	}
	start := time.Now()
	now := m.Now()

	if m.buf != nil {
		m.live.Swap(m.buf.Freeze(now, m.staleAfter))
	}
	snap := m.live.Load()
	m.bindFeedIDs(snap)

	b := BuildBoard(m.cat.Load(), m.agg.Load(), snap, now, uuid.NewString())
	m.board.Store(b)

	if m.pub != nil {
		if err := m.pub.PublishBoard("", b); err != nil {
			m.log.Error("publish board failed", "tick", b.TickID, "error", err)
		}
	}

	running, confirmed := b.runningAndConfirmed()
	if m.metrics != nil {
		m.metrics.Ticks.Inc()
		m.metrics.TickDuration.Observe(time.Since(start).Seconds())
		m.metrics.RoutesRunning.Set(float64(running))
		m.metrics.RoutesConfirmed.Set(float64(confirmed))
		m.metrics.StopsServed.Set(float64(b.servedStops()))
		m.metrics.LiveVehicles.Set(float64(snap.Len()))
		m.metrics.SuppressedLive.Set(float64(b.Suppressed))
	}
	m.log.Debug("tick",
		"tick", b.TickID,
		"at", now.Format(time.RFC3339),
		"running", running,
		"confirmed", confirmed,
		"vehicles", len(b.Vehicles),
		"suppressed", b.Suppressed,
	)
	return b
}

// bindFeedIDs records, for every vehicle whose route label the catalog knows,
// the feed's own identifier for that route. The most recent binding wins.
func (m *Manager) bindFeedIDs(snap *live.Snapshot) {
	if snap == nil {
		return
	}
	cat := m.cat.Load()
	next := cat
	for _, v := range snap.Vehicles {
		if v.RouteID == "" || v.RouteID == unassignedRouteID {
			continue
		}
		code, ok := next.ShortCodeForFeedName(v.RouteName)
		if !ok {
			continue
		}
		bound, changed, err := next.WithFeedBinding(code, v.RouteID)
		if err != nil {
			m.log.Warn("feed name maps to unknown route", "feedName", v.RouteName, "route", code, "error", err)
			continue
		}
		if !changed {
			continue
		}
		next = bound
		if m.metrics != nil {
			m.metrics.FeedBindings.Inc()
		}
		m.log.Info("bound feed route id", "route", code, "feedId", v.RouteID)
	}
	if next != cat {
		m.cat.CompareAndSwap(cat, next)
	}
}

// The feed reports vehicles that are not on any route under this ID.
const unassignedRouteID = "-1"
