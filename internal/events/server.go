package events

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server accepts TCP subscribers and registers them with the hub. Anything a
// subscriber sends is read and discarded.
type Server struct {
	Addr string
	Hub  *Hub

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts on ln until Close is called, then returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	logger := s.Hub.logger.With(slog.String("transport", "tcp"))
	logger.Info("event feed listening", slog.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warn("accept failed", slog.Any("error", err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, _ = conn.Write(welcome("tcp", s.Hub.Stats().TCPClients+1))
		s.Hub.Add(conn)
		logger.Info("subscriber connected", slog.String("remote", conn.RemoteAddr().String()))

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				logger.Info("subscriber disconnected", slog.String("remote", c.RemoteAddr().String()))
			}()
			sc := bufio.NewScanner(c)
			for sc.Scan() {
				// discard
			}
		}(conn)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting and disconnects every TCP and WebSocket subscriber.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.Hub.CloseAll()
	return err
}
