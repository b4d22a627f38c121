package ws

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"landmass/internal/streamproto"
	"landmass/internal/world"
)

const defaultSendBuffer = 1024

type Options struct {
	Params      streamproto.WorldParams
	AllowRemote bool
	SendBuffer  int // per-session queue length
	Logger      *log.Logger
}

// Server streams chunk events to websocket viewers. It implements world.Display;
// its Display methods and RecordTick must be called from the tick goroutine.
type Server struct {
	store  *world.ChunkStore
	opts   Options
	log    *log.Logger
	closed atomic.Bool

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	conns    map[string]*websocket.Conn

	tick     atomic.Uint64
	observer atomic.Pointer[mgl32.Vec2]
}

var _ world.Display = (*Server)(nil)

// NewServer creates a server that resyncs viewers from store.
func NewServer(store *world.ChunkStore, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Server{
		store: store,
		opts:  opts,
		log:   opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: make(map[string]*session),
		conns:    make(map[string]*websocket.Conn),
	}
}

// Handler routes /v1/bootstrap and /v1/ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/ws", s.WSHandler())
	return mux
}

// Observer returns the last position sent by a driving session.
func (s *Server) Observer() (mgl32.Vec2, bool) {
	p := s.observer.Load()
	if p == nil {
		return mgl32.Vec2{}, false
	}
	return *p, true
}

// SessionCount returns the number of subscribed viewers.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) allowed(r *http.Request) bool {
	return s.opts.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := streamproto.BootstrapResponse{
			ProtocolVersion: streamproto.Version,
			Tick:            s.tick.Load(),
			WorldParams:     s.opts.Params,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.closed.Load() {
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub streamproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != streamproto.TypeSubscribe || sub.ProtocolVersion != streamproto.Version {
			rejectHandshake(conn, "expected SUBSCRIBE "+streamproto.Version)
			return
		}

		sess := newSession(uuid.NewString(), s.opts.SendBuffer)
		sess.wantMeshes.Store(sub.WantMeshes)
		sess.driveObserver.Store(sub.DriveObserver)
		sess.needResync.Store(true)
		sess.sendText(mustMarshal(streamproto.WelcomeMsg{
			Type:            streamproto.TypeWelcome,
			ProtocolVersion: streamproto.Version,
			SessionID:       sess.id,
			WorldParams:     s.opts.Params,
		}))

		s.register(sess, conn)
		defer s.unregister(sess.id)
		s.log.Printf("Viewer %s subscribed (meshes=%v, drive=%v) from %s", sess.id, sub.WantMeshes, sub.DriveObserver, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case m := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(m.kind, m.data); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE updates and OBSERVE.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleClientMessage(sess, msg)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if n := sess.dropped.Load(); n > 0 {
			s.log.Printf("Viewer %s left, %d messages dropped", sess.id, n)
		}
	}
}

func (s *Server) handleClientMessage(sess *session, msg []byte) {
	var base streamproto.BaseMessage
	if err := json.Unmarshal(msg, &base); err != nil || base.ProtocolVersion != streamproto.Version {
		return
	}
	switch base.Type {
	case streamproto.TypeSubscribe:
		var sub streamproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			return
		}
		if sess.wantMeshes.Swap(sub.WantMeshes) != sub.WantMeshes {
			sess.needResync.Store(true)
		}
		sess.driveObserver.Store(sub.DriveObserver)
	case streamproto.TypeObserve:
		if !sess.driveObserver.Load() {
			return
		}
		var obs streamproto.ObserveMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			return
		}
		p := mgl32.Vec2{obs.X, obs.Y}
		s.observer.Store(&p)
	}
}

func (s *Server) register(sess *session, conn *websocket.Conn) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.conns[sess.id] = conn
	s.mu.Unlock()
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) each(fn func(*session)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		fn(sess)
	}
}

func (s *Server) ChunkMeshReady(c *world.Chunk) {
	var frame []byte
	s.each(func(sess *session) {
		if !sess.wantMeshes.Load() {
			return
		}
		if frame == nil {
			b, err := streamproto.EncodeMesh(c.Coord.X, c.Coord.Y, c.Mesh())
			if err != nil {
				s.log.Printf("Encode mesh %v: %v", c.Coord, err)
				return
			}
			frame = b
		}
		sess.sendBinary(frame)
	})
}

func (s *Server) ChunkVisibilityChanged(c *world.Chunk, visible bool) {
	b := mustMarshal(streamproto.ChunkVisibilityMsg{
		Type:            streamproto.TypeChunkVisibility,
		ProtocolVersion: streamproto.Version,
		CX:              c.Coord.X,
		CY:              c.Coord.Y,
		Visible:         visible,
	})
	s.each(func(sess *session) { sess.sendText(b) })
}

func (s *Server) ChunkEvicted(c *world.Chunk) {
	b := mustMarshal(streamproto.ChunkEvictMsg{
		Type:            streamproto.TypeChunkEvict,
		ProtocolVersion: streamproto.Version,
		CX:              c.Coord.X,
		CY:              c.Coord.Y,
	})
	s.each(func(sess *session) { sess.sendText(b) })
}

// RecordTick resyncs lagging sessions and broadcasts the tick summary.
func (s *Server) RecordTick(st world.TickStats) error {
	s.tick.Store(st.Tick)

	var visible []*world.Chunk
	s.each(func(sess *session) {
		if !sess.needResync.Swap(false) {
			return
		}
		if visible == nil {
			visible = s.store.Visible()
		}
		s.resync(sess, st.Tick, visible)
	})

	b := mustMarshal(streamproto.TickMsg{
		Type:            streamproto.TypeTick,
		ProtocolVersion: streamproto.Version,
		Tick:            st.Tick,
		Observer:        [2]float32{st.ObserverX, st.ObserverY},
		Center:          [2]int{st.Center.X, st.Center.Y},
		Visible:         st.Visible,
		Resident:        st.Resident,
		Pending:         st.Pending,
	})
	s.each(func(sess *session) { sess.sendText(b) })
	return nil
}

func (s *Server) resync(sess *session, tick uint64, visible []*world.Chunk) {
	msg := streamproto.ResyncMsg{
		Type:            streamproto.TypeResync,
		ProtocolVersion: streamproto.Version,
		Tick:            tick,
		Visible:         make([][2]int, 0, len(visible)),
	}
	for _, c := range visible {
		msg.Visible = append(msg.Visible, [2]int{c.Coord.X, c.Coord.Y})
	}
	if !sess.sendText(mustMarshal(msg)) {
		return
	}
	if !sess.wantMeshes.Load() {
		return
	}
	for _, c := range visible {
		m := c.Mesh()
		if m == nil {
			continue // arrives with ChunkMeshReady
		}
		frame, err := streamproto.EncodeMesh(c.Coord.X, c.Coord.Y, m)
		if err != nil {
			s.log.Printf("Encode mesh %v: %v", c.Coord, err)
			continue
		}
		if !sess.sendBinary(frame) {
			return
		}
	}
}

// Close disconnects every viewer. Handlers started afterwards are refused.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"), time.Now().Add(time.Second))
		_ = c.Close()
	}
	return nil
}

func rejectHandshake(conn *websocket.Conn, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, mustMarshal(streamproto.ErrorMsg{
		Type:            streamproto.TypeError,
		ProtocolVersion: streamproto.Version,
		Code:            "E_PROTO",
		Message:         reason,
	}))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
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
