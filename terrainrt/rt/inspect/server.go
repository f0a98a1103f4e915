// Package inspect serves a loopback-only view of the stream: a JSON status snapshot, per-chunk
// lookups and a websocket feed of status frames.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/stream"

	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 8
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Status is a copy of the stream taken on the frame loop. Key lists are sorted.
type Status struct {
	Frame     uint64               `json:"frame"`
	Window    core.Window          `json:"window"`
	Center    core.ChunkCoord      `json:"center"`
	Resident  []core.ChunkKey      `json:"resident"`
	Requested []core.ChunkKey      `json:"requested"`
	Producer  stream.ProducerStats `json:"producer"`
	Consumer  stream.ConsumerStats `json:"consumer"`
	Timings   map[string]float64   `json:"timings,omitempty"`
}

// StatusOf snapshots a streamer. Only call it from the frame loop.
func StatusOf(frame uint64, s *stream.Streamer) Status {
	center, _ := s.State.Center()
	return Status{
		Frame:     frame,
		Window:    s.State.Window,
		Center:    center,
		Resident:  s.State.Resident.Keys(),
		Requested: s.State.RequestedKeys(),
		Producer:  s.Coordinator().Stats(),
		Consumer:  s.Stats(),
	}
}

// ChunkStatus answers /chunk.
type ChunkStatus struct {
	Key       core.ChunkKey   `json:"key"`
	Coord     core.ChunkCoord `json:"coord"`
	Frame     uint64          `json:"frame"`
	Resident  bool            `json:"resident"`
	Requested bool            `json:"requested"`
	// InWindow reports whether the chunk holding the coordinate lies in the current window.
	InWindow bool `json:"in_window"`
}

type Server struct {
	log      Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	status  Status
	encoded []byte
	clients map[uint64]chan []byte

	nextID    atomic.Uint64
	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewServer(log Logger) *Server {
	if log == nil {
		log = nopLogger{}
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]chan []byte),
	}
}

// Publish replaces the current snapshot and queues it to every websocket client. It never
// blocks: a client whose queue is full misses the frame.
func (s *Server) Publish(st Status) {
	b, err := json.Marshal(st)
	if err != nil {
		s.log.Warnf("encode status: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.encoded = b
	s.published.Add(1)
	for _, out := range s.clients {
		select {
		case out <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

// Status returns the last published snapshot.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Dropped counts frames skipped for slow websocket clients.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/chunk", s.handleChunk)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	s.mu.Lock()
	b := s.encoded
	s.mu.Unlock()
	if b == nil {
		b, _ = json.Marshal(Status{})
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(b)
}

func (s *Server) handleChunk(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	key := core.ChunkKey(r.URL.Query().Get("key"))
	coord, err := core.ParseKey(key)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}
	st := s.Status()
	resp := ChunkStatus{
		Key:       key,
		Coord:     coord,
		Frame:     st.Frame,
		Resident:  containsKey(st.Resident, key),
		Requested: containsKey(st.Requested, key),
		InWindow:  st.Window.Edge > 0 && st.Window.Contains(st.Center, coord),
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := s.nextID.Add(1)
	out := make(chan []byte, clientBuffer)
	s.mu.Lock()
	if s.encoded != nil {
		out <- s.encoded
	}
	s.clients[id] = out
	s.mu.Unlock()
	s.log.Debugf("client %d connected from %s", id, r.RemoteAddr)
	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		s.log.Debugf("client %d left", id)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// The feed is one-way; reads only detect the client going away.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}

func containsKey(sorted []core.ChunkKey, key core.ChunkKey) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= key })
	return i < len(sorted) && sorted[i] == key
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
