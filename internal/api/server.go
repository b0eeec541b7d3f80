package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cleverdata/s3-uploader/internal/core"
	"github.com/cleverdata/s3-uploader/internal/db"
)

// StatusSource reports the dispatcher state. *core.Engine satisfies it.
type StatusSource interface {
	Status() core.Status
}

// HistorySource returns recent ledger rows. *db.DB satisfies it.
type HistorySource interface {
	Recent(limit int) ([]db.Record, error)
}

type Health struct {
	Status                string  `json:"status"`
	HLS                   bool    `json:"hls"`
	Recordings            bool    `json:"recordings"`
	RecordingDelayMinutes float64 `json:"recordingDelayMinutes"`
	PendingRecordings     int     `json:"pendingRecordings"`
	Bucket                string  `json:"bucket"`
}

type Pending struct {
	Count   int                  `json:"count"`
	Files   []string             `json:"files"`
	Entries []core.PendingUpload `json:"entries"`
}

type History struct {
	Count   int         `json:"count"`
	Records []db.Record `json:"records"`
}

type Server struct {
	status  StatusSource
	history HistorySource
	logger  core.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewServer builds the inspection router. history may be nil, in which case
// /history answers 503. Callers pick the gin mode.
func NewServer(status StatusSource, history HistorySource, logger core.Logger) *Server {
	s := &Server{status: status, history: history, logger: logger}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", s.health)
	router.GET("/pending", s.pending)
	router.GET("/history", s.recent)
	s.router = router
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until ctx is cancelled, then shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	s.srv = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Inspection server listening on %s", s.srv.Addr)
		}
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	st := s.status.Status()
	c.JSON(http.StatusOK, Health{
		Status:                "ok",
		HLS:                   st.HLSEnabled,
		Recordings:            st.RecordingsEnabled,
		RecordingDelayMinutes: st.RecordingDelay.Minutes(),
		PendingRecordings:     st.PendingCount,
		Bucket:                st.Bucket,
	})
}

func (s *Server) pending(c *gin.Context) {
	st := s.status.Status()
	files := st.PendingPaths
	if files == nil {
		files = []string{}
	}
	entries := st.Pending
	if entries == nil {
		entries = []core.PendingUpload{}
	}
	c.JSON(http.StatusOK, Pending{Count: len(files), Files: files, Entries: entries})
}

func (s *Server) recent(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history is not enabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := s.history.Recent(limit)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("History query failed: %v", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []db.Record{}
	}
	c.JSON(http.StatusOK, History{Count: len(recs), Records: recs})
}
