package api

import (
	"FeatureBench/logger"
	"FeatureBench/monitor"
	"FeatureBench/pipeline"
	"FeatureBench/report"
	"FeatureBench/service"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SimilarFinder looks up stored runs with a comparable match profile.
type SimilarFinder interface {
	SimilarRuns(ctx context.Context, id string, limit int) ([]report.StoredRun, error)
}

// Server exposes the job service over REST and streams progress events over
// a websocket.
type Server struct {
	svc     *service.Service
	metrics *monitor.Metrics
	similar SimilarFinder
	log     *zap.Logger
}

// New builds the HTTP front. metrics may be nil.
func New(svc *service.Service, metrics *monitor.Metrics) *Server {
	return &Server{svc: svc, metrics: metrics, log: logger.Log()}
}

// WithSimilar enables /api/runs/:id/similar.
func (s *Server) WithSimilar(f SimilarFinder) *Server {
	s.similar = f
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.count)
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/options", s.options)
	r.POST("/api/runs", s.submitRun)
	r.POST("/api/sweeps", s.submitSweep)
	r.GET("/api/jobs", s.listJobs)
	r.GET("/api/jobs/:id", s.getJob)
	r.GET("/api/jobs/:id/stats.csv", s.jobCSV)
	r.GET("/ws/events", s.events)
	if s.similar != nil {
		r.GET("/api/runs/:id/similar", s.similarRuns)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

func (s *Server) count(c *gin.Context) {
	c.Next()
	if s.metrics != nil && c.FullPath() != "" {
		s.metrics.Request("http", c.FullPath())
	}
}

// Run serves on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) options(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"detectors":   pipeline.AllDetectors,
		"descriptors": pipeline.AllDescriptors,
		"matchers":    pipeline.AllMatchers,
		"selectors":   pipeline.AllSelectors,
	}})
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) submitRun(c *gin.Context) {
	var combo pipeline.Combination
	if err := c.ShouldBindJSON(&combo); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitRun(combo)
	if err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (s *Server) submitSweep(c *gin.Context) {
	var cfg pipeline.SweepConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	job, err := s.svc.SubmitSweep(cfg)
	if err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.svc.List()})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.svc.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (s *Server) jobCSV(c *gin.Context) {
	job, err := s.svc.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if !job.Finished() {
		c.JSON(http.StatusConflict, gin.H{"error": "Job not finished", "status": job.Status})
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, job.Aggregates); err != nil {
		s.log.Error("CSV export failed", zap.String("id", job.ID), zap.Error(err))
	}
}

func (s *Server) similarRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	runs, err := s.similar.SimilarRuns(c.Request.Context(), c.Param("id"), limit)
	switch {
	case errors.Is(err, report.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
	case err != nil:
		s.log.Error("Similar run lookup failed", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"data": runs})
	}
}

// events streams service events as JSON text messages. With ?job=<id> only
// that job's events are sent.
func (s *Server) events(c *gin.Context) {
	jobID := c.Query("job")
	if jobID != "" {
		if _, err := s.svc.Get(jobID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, stop := s.svc.Subscribe()
	defer stop()

	// reader: only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			s.log.Debug("Event stream closed by client")
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "service closed"))
				return
			}
			if jobID != "" && e.JobID != jobID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug("Event stream write failed", zap.Error(err))
				return
			}
		}
	}
}
