package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/securemessenger/relay/dispatch"
	"github.com/securemessenger/relay/registry"
	"github.com/securemessenger/relay/shared"
)

var errLineTooLong = errors.New("line exceeds maximum length")

// Server owns the listening socket and the per-connection read loops.
// Its lifecycle (Listen, Serve, Shutdown) belongs to the caller; there
// is no package-global state.
type Server struct {
	cfg        *Config
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	listener net.Listener
	closing  bool

	wg sync.WaitGroup
}

func New(cfg *Config, reg *registry.Registry, d *dispatch.Dispatcher) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Server{
		cfg:        cfg,
		registry:   reg,
		dispatcher: d,
	}
}

// Listen binds the configured address. Failure to bind is the only
// process-fatal error the relay has.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	log.Printf("Server started on %s", listener.Addr())
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closing
}

// Serve accepts connections until the listener is closed by Shutdown.
// Each accepted connection gets its own handler goroutine; an accept
// error on one connection never stops the loop.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Error accepting connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// Start binds the configured address and serves until Shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// handleConnection drives one connection's read loop. Registry
// cleanup and the socket close run on every exit path, a panic in the
// handling path included, so one connection's fault never reaches the
// others.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	c := shared.NewClient(conn)
	s.registry.Register(c, c.Addr)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic handling client %s (%s): %v", c.Addr, c.ID, r)
		}
		s.registry.Remove(c)
		c.Close()
		log.Printf("Client disconnected: %s (%s). Total clients: %d", c.Addr, c.ID, s.registry.Count())
	}()

	// A connection accepted while Shutdown is closing the registered
	// clients may register after the snapshot; drop it here instead of
	// letting its reader block until the shutdown timeout.
	if s.isClosing() {
		return
	}

	log.Printf("New client connected: %s (%s). Total clients: %d", c.Addr, c.ID, s.registry.Count())

	reader := bufio.NewReader(conn)
	for {
		line, err := readLimitedLine(reader, s.cfg.MaxLineSize)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				// An oversized line is local to itself, like a malformed one.
				log.Printf("Line from client %s (%s) exceeds %d bytes; discarding", c.Addr, c.ID, s.cfg.MaxLineSize)
				continue
			}
			if err != io.EOF {
				log.Printf("Error reading from client %s (%s): %v", c.Addr, c.ID, err)
			}
			return
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		env, err := shared.ParseEnvelope(line)
		if err != nil {
			// A bad line is local to itself; the connection stays open.
			log.Printf("Invalid JSON from client %s (%s): %v", c.Addr, c.ID, err)
			continue
		}

		s.dispatcher.Dispatch(env, c)
	}
}

// readLimitedLine reads one newline-terminated line of at most max
// bytes. An oversized line is drained through its newline and reported
// as errLineTooLong so the caller can skip it without losing framing.
// A partial line before EOF reports io.EOF (treated as close).
func readLimitedLine(reader *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return nil, err
		}
		if len(line) > max {
			if err := discardLine(reader); err != nil {
				return nil, err
			}
			return nil, errLineTooLong
		}
	}
	if len(line) > max {
		return nil, errLineTooLong
	}
	return line, nil
}

// discardLine consumes input through the next newline.
func discardLine(reader *bufio.Reader) error {
	for {
		if _, err := reader.ReadSlice('\n'); err != bufio.ErrBufferFull {
			return err
		}
	}
}

// Shutdown stops accepting new connections, closes every registered
// connection to unblock its reader, and waits for in-flight handlers
// to exit. It returns context.DeadlineExceeded when handlers are
// still running after timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	listener := s.listener
	s.closing = true
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			log.Printf("Error closing listener: %v", err)
		}
	}

	for _, c := range s.registry.Clients() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Server shutdown timeout reached, some handlers may still be running")
		return context.DeadlineExceeded
	}
}
