// Package server wires the admin HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/metrics"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/joshu-sajeev/queuectl/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Deps struct {
	Jobs        job.JobServiceInterface
	Registry    *registry.Registry
	Coordinator registry.WorkerStopper
	Config      *config.Config
	Log         logrus.FieldLogger
}

func NewRouter(d Deps) *gin.Engine {
	httpMetrics := metrics.NewHTTPMetrics()
	promRegistry := metrics.NewRegistry(
		httpMetrics,
		metrics.NewQueueCollector(d.Jobs, d.Registry, d.Config.LockTimeout, d.Log),
	)

	r := gin.New()
	r.Use(gin.Recovery(), httpMetrics.Middleware(), middleware.RequestLogger(d.Log), middleware.ErrorHandler(slices.Concat(job.ErrorStatuses, registry.ErrorStatuses)...))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	jobs := job.NewJobHandler(d.Jobs, d.Registry)
	api := r.Group("/", middleware.TimeoutMiddleware(requestTimeout))
	{
		api.POST("/jobs", jobs.Create)
		api.GET("/jobs", jobs.List)
		api.GET("/jobs/:id", jobs.Get)
		api.GET("/status", jobs.Status)
		api.GET("/dlq", jobs.DLQList)
		api.POST("/dlq/:id/requeue", jobs.DLQRequeue)
	}

	workers := registry.NewWorkerHandler(d.Registry, d.Coordinator, d.Config.WorkerStaleThreshold, d.Config.StopGrace)
	r.GET("/workers", workers.List)
	// stopping blocks for up to the grace period, outside the request timeout
	r.POST("/workers/stop", workers.Stop)

	return r
}

type Server struct {
	addr    string
	handler http.Handler
	log     logrus.FieldLogger
}

func New(addr string, handler http.Handler, log logrus.FieldLogger) *Server {
	return &Server{addr: addr, handler: handler, log: log}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("admin API listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("admin API shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
