package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/logger"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/progress"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/store"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

const (
	version     = "1.0.0"
	maxJobBytes = 1 << 20
)

var ErrRangeTooLarge = errors.New("id_range exceeds the server limit")

// Server exposes scans over HTTP and websocket
type Server struct {
	cfg       config.ServerConfig
	store     store.Store
	telemetry telemetry.Telemetry
	log       *logger.Logger
	scanOpts  []idor.Option
	router    *gin.Engine
	upgrader  websocket.Upgrader
}

// NewServer wires routes and middleware. scanOpts are applied to every scan
// the server runs. Background middleware work stops when ctx is done.
func NewServer(ctx context.Context, cfg config.ServerConfig, st store.Store, tel telemetry.Telemetry, log *logger.Logger, scanOpts ...idor.Option) *Server {
	if tel == nil {
		tel = telemetry.Noop()
	}

	s := &Server{
		cfg:       cfg,
		store:     st,
		telemetry: tel,
		log:       log,
		scanOpts:  scanOpts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(log))

	// Health check (no auth required)
	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.Use(AuthMiddleware(cfg.APIKey, log))
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimit, log))

		v1.POST("/scans", s.createScan)
		v1.GET("/scans/ws", s.streamScan)
		v1.GET("/scans/:id", s.getScan)
	}

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// No write timeout: POST /scans holds the response until the scan completes.
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Infow("HTTP server listening",
			"address", addr,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Errorw("Failed to shutdown gracefully",
				"error", err,
			)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		s.log.Infow("Server shutdown complete")
		return nil
	})

	return g.Wait()
}

// parseJob decodes a scan job (YAML or JSON) and applies the server's range cap
func (s *Server) parseJob(data []byte) (idor.ScanConfig, error) {
	job, err := idor.ParseConfig(data)
	if err != nil {
		return idor.ScanConfig{}, err
	}
	if s.cfg.MaxRange > 0 && job.RangeSize() > s.cfg.MaxRange {
		return idor.ScanConfig{}, fmt.Errorf("%w: %d > %d", ErrRangeTooLarge, job.RangeSize(), s.cfg.MaxRange)
	}
	return job, nil
}

// runScan executes job, records metrics and stores the report. A failed save
// is logged and the report is still returned.
func (s *Server) runScan(ctx context.Context, job idor.ScanConfig, observe idor.ProgressFunc) (report *idor.Report, err error) {
	start := time.Now()
	ctx, span := s.log.StartOperation(ctx, "api.scan",
		"target", job.Target,
		"range_size", job.RangeSize(),
	)
	defer func() {
		s.log.FinishOperation(ctx, span, "api.scan", start, err)
	}()

	scanLog := s.log.WithTarget(job.Target)
	opts := append([]idor.Option{idor.WithLogger(scanLog)}, s.scanOpts...)
	opts = append(opts, idor.WithProgress(progress.Tee(
		observe,
		progress.LogCheckpoints(ctx, scanLog, progress.DefaultStep),
	)))

	report, err = idor.NewScanner(opts...).Run(ctx, job)
	s.telemetry.RecordScan(ctx, report, err)
	if err != nil {
		return nil, err
	}

	if saveErr := s.store.Save(ctx, report); saveErr != nil {
		scanLog.WithScanID(report.ScanID).LogError(ctx, saveErr, "store.save")
	}
	return report, nil
}
