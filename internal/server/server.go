// Package server exposes the event intake boundary: the external
// kernel-event source connects over a WebSocket, streams JSON events,
// and receives exactly one verdict reply per event. The one contractual
// obligation here is to always reply; no reply means the real-world
// operation stays blocked on the other side.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/procwatch/procwatch/internal/model"
)

// Adjudicator decides events; implemented by sentinel.Sentinel.
type Adjudicator interface {
	Adjudicate(ctx context.Context, ev model.Event) (bool, string)
}

// EventMessage is one inbound event. ID is echoed back so the source
// can correlate concurrent replies.
type EventMessage struct {
	ID    int64       `json:"id"`
	Event model.Event `json:"event"`
}

// VerdictMessage is the reply to one EventMessage.
type VerdictMessage struct {
	ID     int64  `json:"id"`
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// Config holds intake server configuration.
type Config struct {
	Listen string
}

// Server serves the /events WebSocket endpoint.
type Server struct {
	cfg         Config
	adjudicator Adjudicator
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

// New creates an intake server.
func New(cfg Config, adjudicator Adjudicator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		adjudicator: adjudicator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("event intake listening", "addr", s.cfg.Listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleEvents upgrades the connection and adjudicates each event in
// its own goroutine, so one event suspended on a human prompt does not
// stall the rest of the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// gorilla permits one concurrent writer; replies share this mutex.
	var writeMu sync.Mutex
	reply := func(v VerdictMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			s.logger.Warn("verdict write failed", "id", v.ID, "error", err)
		}
	}

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("event source disconnected", "error", err)
			}
			return
		}

		var msg EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Still a reply, still fail closed.
			reply(VerdictMessage{Allow: false, Reason: "malformed event: " + err.Error()})
			continue
		}

		go func(msg EventMessage) {
			allowed, reason := s.adjudicator.Adjudicate(ctx, msg.Event)
			reply(VerdictMessage{ID: msg.ID, Allow: allowed, Reason: reason})
		}(msg)
	}
}
