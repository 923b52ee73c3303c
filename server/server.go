package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"stocktrader/protocol"
	"stocktrader/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultMaxLineBytes = 4096

// Config holds the listener settings
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxLineBytes    int
}

// Server accepts connections and runs one session per connection
type Server struct {
	cfg         Config
	interpreter *protocol.Interpreter

	mu         sync.Mutex
	listener   net.Listener
	conns      map[*conn]struct{}
	inShutdown bool

	wg           sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

type conn struct {
	netConn net.Conn
	logger  *log.Entry
	busy    bool
}

// New creates a server
func New(cfg Config, interpreter *protocol.Interpreter) *Server {
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	return &Server{
		cfg:         cfg,
		interpreter: interpreter,
		conns:       make(map[*conn]struct{}),
		shutdown:    make(chan struct{}),
	}
}

// ListenAndServe binds host:port and serves until SHUTDOWN or ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns once the server has stopped
// accepting and every connection has finished, or the shutdown timeout has
// passed and the remaining connections were closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.inShutdown {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	log.WithField("addr", ln.Addr().String()).Info("Server listening for connections")

	// Commands already running finish even after ctx is cancelled
	commandCtx, cancelCommands := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelCommands()

	go func() {
		select {
		case <-ctx.Done():
			log.Info("Context cancelled, shutting down server")
			s.Shutdown()
		case <-s.shutdown:
		}
	}()

	var acceptErr error
	for {
		netConn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.WithError(err).Warn("Temporary accept error")
				time.Sleep(50 * time.Millisecond)
				continue
			}
			acceptErr = fmt.Errorf("failed to accept connection: %w", err)
			s.Shutdown()
			break
		}

		c := &conn{
			netConn: netConn,
			logger: log.WithFields(log.Fields{
				"conn_id":     uuid.NewString(),
				"remote_addr": netConn.RemoteAddr().String(),
			}),
		}
		if !s.track(c) {
			netConn.Close()
			break
		}

		s.wg.Add(1)
		go s.handle(commandCtx, c)
	}

	s.waitForConnections(cancelCommands)
	log.Info("Server stopped")

	return acceptErr
}

// Shutdown stops accepting, closes idle connections and lets busy ones
// finish their current command. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.inShutdown = true
		if s.listener != nil {
			s.listener.Close()
		}
		for c := range s.conns {
			if !c.busy {
				c.netConn.Close()
			}
		}
		s.mu.Unlock()

		close(s.shutdown)
	})
}

func (s *Server) waitForConnections(cancelCommands context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(timeout):
		log.WithField("timeout", timeout).Warn("Shutdown timeout exceeded, closing remaining connections")
		cancelCommands()
		s.mu.Lock()
		for c := range s.conns {
			c.netConn.Close()
		}
		s.mu.Unlock()
		<-done
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inShutdown
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// setBusy marks c as running a command. It fails once shutdown has begun.
func (s *Server) setBusy(c *conn, busy bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.busy = busy
	return !s.inShutdown
}

func (s *Server) handle(ctx context.Context, c *conn) {
	defer s.wg.Done()
	defer s.untrack(c)
	defer c.netConn.Close()

	c.logger.Info("Client connected")
	defer c.logger.Info("Client disconnected")

	reader := bufio.NewReaderSize(c.netConn, s.cfg.MaxLineBytes)
	writer := bufio.NewWriter(c.netConn)
	session := protocol.NewSession(s.interpreter, c.logger)
	defer session.Close()

	for {
		line, err := readLine(reader)
		if errors.Is(err, errLineTooLong) {
			c.logger.WithField("max_bytes", s.cfg.MaxLineBytes).Warn("Request line too long")
			if err := writeResponse(writer, protocol.ErrorResponse(service.NewFormatError("Line too long"))); err != nil {
				return
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.shuttingDown() {
				c.logger.WithError(err).Warn("Connection read failed")
			}
			return
		}

		if !s.setBusy(c, true) {
			return
		}

		resp, transition, err := session.Handle(ctx, line)
		if err != nil {
			c.logger.WithError(err).Warn("Line received on closed session")
			return
		}

		if err := writeResponse(writer, resp); err != nil {
			c.logger.WithError(err).Warn("Failed to write response")
			return
		}

		stillRunning := s.setBusy(c, false)

		switch transition {
		case protocol.Close:
			return
		case protocol.Shutdown:
			c.logger.Info("Shutdown requested by client")
			s.Shutdown()
			return
		}

		if !stillRunning {
			return
		}
	}
}

var errLineTooLong = errors.New("line too long")

// readLine returns the next line without its newline. A line longer than the
// reader's buffer is consumed and reported as errLineTooLong.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return "", err
		}
		return "", errLineTooLong
	}
	if err != nil {
		// A final line without a newline still counts
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return string(line), nil
		}
		return "", err
	}
	return string(line[:len(line)-1]), nil
}

func writeResponse(w *bufio.Writer, resp protocol.Response) error {
	if _, err := w.WriteString(resp.Render()); err != nil {
		return err
	}
	return w.Flush()
}
