package net

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerOptions configure accepted sessions.
type ServerOptions struct {
	Session      SessionOptions
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server accepts TCP connections and WebSocket upgrades and turns both into
// Sessions. New and dead sessions reach the game loop via channels.
type Server struct {
	listener  net.Listener
	nextID    atomic.Uint64
	newConns  chan *Session
	deadCh    chan uint64
	opts      ServerOptions
	upgrader  websocket.Upgrader
	log       *zap.Logger
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewServer listens on bindAddr for framed TCP viewers. An empty bindAddr
// creates a server that only admits WebSocket sessions.
func NewServer(bindAddr string, opts ServerOptions, log *zap.Logger) (*Server, error) {
	s := &Server{
		newConns: make(chan *Session, 64),
		deadCh:   make(chan uint64, 64),
		opts:     opts,
		log:      log,
		closeCh:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if bindAddr != "" {
		ln, err := net.Listen("tcp", bindAddr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", bindAddr, err)
		}
		s.listener = ln
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections and admits
// them as sessions. Returns immediately for a WebSocket-only server.
func (s *Server) AcceptLoop() {
	if s.listener == nil {
		return
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.admit(NewTCPTransport(conn, s.opts.ReadTimeout, s.opts.WriteTimeout), "tcp")
	}
}

// Handler upgrades HTTP requests to WebSocket sessions.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-s.closeCh:
			http.Error(rw, "shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		s.admit(NewWSTransport(conn, s.opts.ReadTimeout, s.opts.WriteTimeout), "ws")
	}
}

func (s *Server) admit(tr Transport, kind string) {
	id := s.nextID.Add(1)
	sess := NewSession(tr, id, s.opts.Session, s.log)
	sess.Start()

	s.log.Info("viewer connected",
		zap.Uint64("session", id),
		zap.String("ip", sess.IP),
		zap.String("transport", kind),
	)

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("connection queue full, rejecting viewer")
		sess.Close()
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// NotifyDead reports a dead session ID to the game loop.
func (s *Server) NotifyDead(sessionID uint64) {
	select {
	case s.deadCh <- sessionID:
	default:
	}
}

// DeadSessions returns the channel of dead session IDs.
func (s *Server) DeadSessions() <-chan uint64 {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}

// Addr returns the TCP listener's address, or nil for a WebSocket-only server.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
