package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shuttle-tracker/internal/api"
	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/config"
	"shuttle-tracker/internal/db"
	"shuttle-tracker/internal/live"
	"shuttle-tracker/internal/logger"
	"shuttle-tracker/internal/metrics"
	"shuttle-tracker/internal/publisher"
	"shuttle-tracker/internal/tracker"
)

// How often the postgres source is checked for a newer timetable version.
const catalogRefreshInterval = 30 * time.Minute

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.ParseLevel("info"), logger.ConsoleWriter()).Fatal("config error", "error", err)
	}
	log := newLogger(cfg)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mcol := metrics.NewCollector(cfg.TickInterval)

	var sqlDB *sql.DB
	if cfg.TimetableSource == config.SourcePostgres {
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("db open error", "error", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatal("db ping error", "error", err)
		}
		if err := db.CheckSchema(ctx, sqlDB); err != nil {
			log.Fatal("timetable schema", "error", err)
		}
	}

	cat, err := loadCatalog(ctx, cfg, sqlDB, log, mcol)
	if err != nil {
		log.Fatal("load timetable catalog", "source", cfg.TimetableSource, "error", err)
	}

	// Live positions and board publication are optional.
	var (
		buf *live.Buffer
		pub tracker.BoardPublisher
	)
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.BoardSubject, log, mcol)
		if err != nil {
			log.Fatal("nats error", "error", err)
		}
		defer np.Close()
		buf = live.NewBuffer()
		if err := np.SubscribeVehicles(cfg.VehicleSubject, buf); err != nil {
			log.Fatal("nats subscribe error", "error", err)
		}
		pub = np
	} else {
		log.Warn("NATS_URL not set; running on the static schedule only")
	}

	mgr := tracker.NewManager(cat, buf, pub, log, mcol, cfg.TickInterval, cfg.LiveStaleAfter, cfg.Location)
	mgr.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(mgr, mcol.Handler(), cfg.CORSOrigins, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Pick up newly published timetable versions
	var done chan struct{}
	if sqlDB != nil {
		done = make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(catalogRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				current := mgr.Catalog().Version
				version, err := db.ResolveLatestVersion(ctx, sqlDB, cfg.TimetableFeed)
				if err != nil {
					log.Warn("resolve latest timetable version", "feed", cfg.TimetableFeed, "error", err)
					continue
				}
				if version == current {
					continue
				}
				next, err := loadCatalog(ctx, cfg, sqlDB, log, mcol)
				if err != nil {
					log.Error("reload timetable catalog", "version", version, "error", err)
					continue
				}
				mgr.SetCatalog(next)
				log.Info("switched timetable catalog", "from", current, "to", next.Version)
			}
		}()
	}

	// Block until context cancelled
	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	mgr.Stop()
	if done != nil {
		<-done
	}
	log.Info("shutdown complete")
}

func newLogger(cfg *config.Config) logger.Logger {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		return logger.New(level, logger.ConsoleWriter(), logger.FileWriter(cfg.LogFile))
	}
	return logger.New(level, logger.ConsoleWriter())
}

// loadCatalog reads the catalog from the configured source, reports its token
// issues and records it in metrics.
func loadCatalog(ctx context.Context, cfg *config.Config, sqlDB *sql.DB, log logger.Logger, mcol *metrics.Collector) (*catalog.Catalog, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	switch cfg.TimetableSource {
	case config.SourcePostgres:
		var payload []byte
		var version string
		version, payload, err = db.FetchCatalog(ctx, sqlDB, cfg.TimetableFeed)
		if err != nil {
			return nil, err
		}
		cat, _, err = catalog.Parse(payload)
		if err != nil {
			return nil, err
		}
		// The row version is authoritative; the refresher compares against it.
		cat.Version = version
	default:
		cat, _, err = catalog.LoadEmbedded()
		if err != nil {
			return nil, err
		}
	}

	issues := cat.StopIssues()
	for _, is := range issues {
		log.Warn("malformed timetable token",
			"timetable", is.Timetable,
			"stop", is.Stop,
			"index", is.Index,
			"token", string(is.Token),
		)
	}
	mcol.MalformedTokens.Add(float64(len(issues)))
	mcol.SetCatalog(cat.Version, cfg.TimetableSource)

	if tz := strings.TrimSpace(cat.Timezone); tz != "" && tz != cfg.Location.String() {
		log.Warn("catalog time zone differs from TZ", "catalog", tz, "tz", cfg.Location.String())
	}
	log.Info("timetable catalog loaded",
		"version", cat.Version,
		"routes", len(cat.Routes),
		"timetables", len(cat.Timetables),
		"malformedTokens", len(issues),
	)
	return cat, nil
}
