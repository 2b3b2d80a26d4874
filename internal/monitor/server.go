// ABOUTME: HTTP surface for watching the stream: status JSON, Prometheus metrics and a PCM tap
// ABOUTME: The tap is a WebSocket that receives exactly the bytes written to the pipe
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/virtual-audio-driver/micfeed/internal/streamer"
	"github.com/virtual-audio-driver/micfeed/internal/version"
	"github.com/virtual-audio-driver/micfeed/pkg/audio"
	"go.uber.org/zap"
)

const writeDeadline = 10 * time.Second

// Config configures the monitor server
type Config struct {
	Addr      string
	SessionID string
	Name      string
	Pipe      string
	Stats     func() streamer.Stats
	Logger    *zap.Logger
}

// Status is the /status response
type Status struct {
	SessionID    string    `json:"session_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Pipe         string    `json:"pipe"`
	Format       Format    `json:"format"`
	State        string    `json:"state"`
	Cycle        int       `json:"cycle"`
	Steps        int64     `json:"steps"`
	Bytes        int64     `json:"bytes"`
	AudioSeconds float64   `json:"audio_seconds"`
	Current      string    `json:"current,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	Listeners    int       `json:"tap_listeners"`
}

// Format is the stream format announced to tap listeners
type Format struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// Hello is the first text message on the tap
type Hello struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Format    Format `json:"format"`
}

// Server serves the monitor endpoints
type Server struct {
	cfg         Config
	log         *zap.Logger
	router      chi.Router
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New creates a monitor server
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Stats == nil {
		cfg.Stats = func() streamer.Stats { return streamer.Stats{} }
	}

	s := &Server{
		cfg:         cfg,
		log:         cfg.Logger,
		broadcaster: NewBroadcaster(),
		upgrader: websocket.Upgrader{
			// read-only local tap
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/tap", s.handleTap)
	s.router = r

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Broadcaster returns the tap broadcaster
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Observe publishes a written buffer to tap listeners. It is registered as a
// driver observer.
func (s *Server) Observe(ev streamer.Event) {
	if dropped := s.broadcaster.Publish(ev.Data); dropped > 0 {
		s.log.Debug("tap listeners behind, buffer dropped", zap.Int("listeners", dropped))
	}
}

// Start listens on cfg.Addr and serves in the background. It returns the
// bound address, which matters when the port is 0.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("monitor listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("monitor server failed", zap.Error(err))
		}
	}()

	s.log.Info("monitor listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Shutdown stops the HTTP server and disconnects tap listeners
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	// hijacked tap connections are not tracked by http.Server
	s.broadcaster.UnsubscribeAll()

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// Status builds the current status snapshot
func (s *Server) Status() Status {
	st := s.cfg.Stats()
	return Status{
		SessionID:    s.cfg.SessionID,
		Name:         s.cfg.Name,
		Version:      version.Version,
		Pipe:         s.cfg.Pipe,
		Format:       streamFormat(),
		State:        st.State.String(),
		Cycle:        st.Cycle,
		Steps:        st.Steps,
		Bytes:        st.Bytes,
		AudioSeconds: st.Audio.Seconds(),
		Current:      st.Current,
		LastError:    st.LastError,
		StartedAt:    st.StartedAt,
		Listeners:    s.broadcaster.ListenerCount(),
	}
}

func streamFormat() Format {
	f := audio.DefaultFormat
	return Format{Codec: f.Codec, SampleRate: f.SampleRate, Channels: f.Channels, BitDepth: f.BitDepth}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.log.Warn("status encode failed", zap.Error(err))
	}
}

// handleTap streams every written buffer as a binary message after a
// text hello describing the format
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("tap upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	l := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(l)

	s.log.Info("tap listener connected", zap.String("remote", r.RemoteAddr))
	defer s.log.Info("tap listener disconnected", zap.String("remote", r.RemoteAddr))

	hello := Hello{Type: "hello", SessionID: s.cfg.SessionID, Format: streamFormat()}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	// reads only detect the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case buf := <-l.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		case <-l.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-gone:
			return
		}
	}
}
