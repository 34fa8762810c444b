package broadcast

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olahol/melody"
	"github.com/sirupsen/logrus"
)

// Path is where websocket clients connect.
const Path = "/ws"

// Server pushes frame snapshots to every connected websocket client. A
// client that connects late is sent the latest snapshot first.
type Server struct {
	m       *melody.Melody
	http    *http.Server
	clients atomic.Int64

	mu     sync.Mutex
	latest []byte
}

// New returns a server listening on addr once Start is called.
func New(addr string) *Server {
	s := &Server{m: melody.New()}
	s.m.HandleConnect(func(session *melody.Session) {
		s.clients.Add(1)
		logrus.WithField("remote", session.Request.RemoteAddr).Debug("websocket client connected")
		s.mu.Lock()
		latest := s.latest
		s.mu.Unlock()
		if latest != nil {
			if err := session.Write(latest); err != nil {
				logrus.WithError(err).Warn("failed to send latest frame")
			}
		}
	})
	s.m.HandleDisconnect(func(*melody.Session) {
		s.clients.Add(-1)
	})

	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		if err := s.m.HandleRequest(w, r); err != nil {
			logrus.WithError(err).Warn("websocket upgrade failed")
		}
	})
	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves in the background. Errors other than a clean shutdown are
// logged.
func (s *Server) Start() {
	logrus.WithField("addr", s.http.Addr).Info("serving frames over websocket")
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("websocket server stopped")
		}
	}()
}

// Clients reports the number of connected websocket clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

// Publish remembers snapshot and sends it to all clients.
func (s *Server) Publish(snapshot []byte) error {
	buf := make([]byte, len(snapshot))
	copy(buf, snapshot)
	s.mu.Lock()
	s.latest = buf
	s.mu.Unlock()
	return s.m.Broadcast(buf)
}

// Close disconnects clients and stops the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	closeErr := s.m.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	return closeErr
}
