package modbus

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	mbserver "github.com/simonvetter/modbus"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Server defaults.
const (
	// defaultIdleTimeout closes connections that send nothing for this long.
	defaultIdleTimeout = 5 * time.Minute

	// defaultMaxClients covers the control loop, a console and a few attack
	// tools on one bank.
	defaultMaxClients = 32
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ServerConfig holds the settings for one bank listener.
type ServerConfig struct {
	// Name is the device name, used in logs.
	Name string

	// Address is the host:port to listen on. Port 0 picks a free port.
	Address string

	// Bank is the register store served to clients.
	Bank register.Accessor

	// IdleTimeout closes silent connections. Default: 5 minutes.
	IdleTimeout time.Duration

	// MaxClients bounds concurrent connections. Default: 32.
	MaxClients uint

	// Logger is optional.
	Logger Logger
}

// ServerStats holds operational statistics for a bank listener.
type ServerStats struct {
	Requests   uint64
	Exceptions uint64
}

// Server serves a register bank over Modbus/TCP.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg     ServerConfig
	handler *bankHandler

	mu     sync.Mutex
	mb     *mbserver.ModbusServer
	addr   net.Addr
	closed bool
	done   chan struct{}
}

// NewServer creates a server for one bank. Call Start to begin listening.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Bank == nil {
		return nil, fmt.Errorf("bank is required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = defaultMaxClients
	}
	return &Server{
		cfg:     cfg,
		handler: newBankHandler(cfg.Bank),
		done:    make(chan struct{}),
	}, nil
}

// Start binds the listener and serves connections in the background until
// Close is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.mb != nil {
		return fmt.Errorf("%s: already started", s.cfg.Name)
	}

	addr, err := listenAddr(ctx, s.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrListenFailed, s.cfg.Name, s.cfg.Address, err)
	}

	mb, err := mbserver.NewServer(&mbserver.ServerConfiguration{
		URL:        "tcp://" + addr.String(),
		Timeout:    s.cfg.IdleTimeout,
		MaxClients: s.cfg.MaxClients,
	}, s.handler)
	if err != nil {
		return fmt.Errorf("creating %s server: %w", s.cfg.Name, err)
	}
	if err := mb.Start(); err != nil {
		return fmt.Errorf("%w: %s on %s: %w", ErrListenFailed, s.cfg.Name, addr, err)
	}
	s.mb = mb
	s.addr = addr

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	s.logInfo("bank listener started", "device", s.cfg.Name, "address", addr.String())
	return nil
}

// listenAddr resolves address, reserving a free port when it asks for port 0.
func listenAddr(ctx context.Context, address string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}
	if addr.Port != 0 {
		return addr, nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr), nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Name returns the device name served.
func (s *Server) Name() string {
	return s.cfg.Name
}

// Close stops the listener and drops all connections. Further Starts fail
// with ErrServerClosed.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.mb == nil {
		return nil
	}
	err := s.mb.Stop()
	s.logInfo("bank listener stopped", "device", s.cfg.Name)
	return err
}

// Stats returns a snapshot of the server statistics.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Requests:   s.handler.requests.Load(),
		Exceptions: s.handler.exceptions.Load(),
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Info(msg, args...)
	}
}
