package fpm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// Server accepts routing-stack connections, one at a time, and delivers the
// netlink payload of each frame on Messages. Replies are written back over
// the current connection with Send.
type Server struct {
	listener net.Listener
	messages chan []byte
	done     chan struct{}
	stop     sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	conn      net.Conn
	onConnect func(bool)
}

// Listen opens the FPM listener on addr ("host:port").
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fpm listen %s: %w", addr, err)
	}
	return &Server{
		listener: ln,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// OnConnect registers fn to be called with true when a peer attaches and
// false when it goes away. It replaces any earlier callback and may be
// called while Serve runs.
func (s *Server) OnConnect(fn func(bool)) {
	s.mu.Lock()
	s.onConnect = fn
	s.mu.Unlock()
}

// Messages returns the channel of received netlink buffers. It is closed
// when Serve returns.
func (s *Server) Messages() <-chan []byte {
	return s.messages
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	defer close(s.messages)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			util.Logger.Warnf("fpm accept: %v", err)
			continue
		}
		s.handle(ctx, conn)
	}
}

// handle reads frames from conn until it fails. Connections are served
// sequentially; a new peer waits until the current one goes away.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	log := util.WithField("peer", conn.RemoteAddr().String())
	log.Info("fpm peer connected")
	s.setConn(conn)
	defer func() {
		s.setConn(nil)
		conn.Close()
		log.Info("fpm peer disconnected")
	}()

	for {
		h, payload, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Errorf("fpm read: %v", err)
			}
			return
		}
		if h.Type != MsgTypeNetlink {
			log.Debugf("ignoring fpm frame type %d", h.Type)
			continue
		}
		select {
		case s.messages <- payload:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) setConn(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	fn := s.onConnect
	s.mu.Unlock()
	if fn != nil {
		fn(conn != nil)
	}
}

// Connected reports whether a peer is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send frames msg and writes it to the current peer.
func (s *Server) Send(msg []byte) error {
	b, err := Frame(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return util.ErrNotConnected
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("fpm write: %w", err)
	}
	return nil
}

// Close stops accepting and drops the current peer.
func (s *Server) Close() error {
	var err error
	s.stop.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		err = s.listener.Close()
	})
	return err
}
