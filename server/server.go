// Package server exposes a read-only view of the schedule and tracking store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"album-publisher/logging"
	"album-publisher/schedule"
	"album-publisher/tracking"
	"album-publisher/types"
)

type Server struct {
	schedule *schedule.Table
	store    tracking.Store
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger
}

func New(table *schedule.Table, store tracking.Store, loc *time.Location, log logrus.FieldLogger) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		schedule: table,
		store:    store,
		loc:      loc,
		now:      time.Now,
		log:      logging.Component(log, "server"),
	}
}

// Router wires the status endpoints
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthCheckHandler).Methods("GET")
	r.HandleFunc("/schedule", s.scheduleHandler).Methods("GET")
	r.HandleFunc("/schedule/due", s.dueHandler).Methods("GET")
	r.HandleFunc("/schedule/next", s.nextHandler).Methods("GET")
	r.HandleFunc("/tracking", s.trackingHandler).Methods("GET")
	r.Use(s.logRequests)
	return r
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Status server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

// reconciled returns a copy of the table with flags derived from the store
func (s *Server) reconciled(ctx context.Context) (*schedule.Table, *types.TrackingState, error) {
	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	table := schedule.New(s.schedule.Weeks())
	table.Reconcile(state, s.loc)
	return table, state, nil
}

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"weeks":     s.schedule.Len(),
	})
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	table, _, err := s.reconciled(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table.Weeks())
}

func (s *Server) dueHandler(w http.ResponseWriter, r *http.Request) {
	table, _, err := s.reconciled(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	due := table.DueToday(s.now().In(s.loc))
	if due == nil {
		due = []types.DueItem{}
	}
	writeJSON(w, http.StatusOK, due)
}

func (s *Server) nextHandler(w http.ResponseWriter, r *http.Request) {
	table, _, err := s.reconciled(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	item, ok := table.NextScheduledItem(s.now().In(s.loc))
	if !ok {
		http.Error(w, "Nothing scheduled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) trackingHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Load(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("Failed to load tracking")
	http.Error(w, "Failed to load tracking", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
