package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nickrout/ha-powerpetdoor/internal/logging"
	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

// Config holds the simulator configuration
type Config struct {
	Host string
	Port int

	// MotionStep is the time the simulated door spends in each motion
	// phase (rising, holding, slowing, closing).
	MotionStep time.Duration

	LogLevel string
}

// DefaultMotionStep approximates the real door's travel time per phase.
const DefaultMotionStep = 2 * time.Second

// Server simulates a Power Pet Door controller on a TCP listener. Multiple
// clients can connect; they share one door and all see its status broadcasts.
type Server struct {
	config   *Config
	listener net.Listener
	wg       sync.WaitGroup

	mu          sync.Mutex
	activeConns map[string]net.Conn
	door        *doorModel
}

// New creates a simulator instance
func New(config *Config) (*Server, error) {
	if config.LogLevel != "" {
		if err := logging.Initialize(config.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	}
	if config.MotionStep <= 0 {
		config.MotionStep = DefaultMotionStep
	}

	return &Server{
		config:      config,
		activeConns: make(map[string]net.Conn),
		door:        newDoorModel(),
	}, nil
}

// Start starts the simulator and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	logging.Info("Door simulator listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("motion_step", s.config.MotionStep),
	)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.acceptConnections()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping simulator...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Listen binds the listener without blocking on signals. Used by tests and
// embedders that manage their own lifecycle; pair with Serve and Shutdown.
func (s *Server) Listen() (net.Addr, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return listener.Addr(), nil
}

// Serve accepts connections on the bound listener until Shutdown.
func (s *Server) Serve() error {
	return s.acceptConnections()
}

// acceptConnections accepts and handles incoming connections
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed during shutdown
			if opErr, ok := err.(*net.OpError); ok && opErr.Err.Error() == "use of closed network connection" {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection reads brace-delimited JSON blocks from one client and
// answers each decoded request.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	var buf []byte
	readBuf := make([]byte, 4096)
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			logging.LogRX(remoteAddr, readBuf[:n])
			buf = append(buf, readBuf[:n]...)
			for {
				block, rest, berr := protocol.ExtractBlock(buf)
				if berr != nil {
					logging.Error("Client stream desynchronized, dropping connection",
						zap.String("remote_addr", remoteAddr),
						zap.Error(berr),
					)
					return
				}
				if block == nil {
					break
				}
				buf = rest
				s.handleBlock(conn, remoteAddr, block)
			}
		}
		if err != nil {
			return
		}
	}
}

// handleBlock decodes one client request and writes the reply.
func (s *Server) handleBlock(conn net.Conn, remoteAddr string, block []byte) {
	var m map[string]any
	if err := json.Unmarshal(block, &m); err != nil {
		logging.Error("Discarding undecodable request",
			zap.String("remote_addr", remoteAddr),
			zap.ByteString("block", block),
		)
		return
	}

	var msgID any
	if v, ok := m["msgId"]; ok {
		msgID = v
	}

	if payload, ok := m[protocol.ClassPing].(string); ok {
		s.reply(conn, remoteAddr, map[string]any{
			"CMD":     "PONG",
			"success": "true",
			"PONG":    payload,
			"msgID":   msgID,
		})
		return
	}

	if cmd, ok := m[protocol.ClassCommand].(string); ok {
		s.reply(conn, remoteAddr, s.handleCommand(cmd, msgID))
		return
	}

	if cmd, ok := m[protocol.ClassConfig].(string); ok {
		s.reply(conn, remoteAddr, s.handleConfig(cmd, msgID))
		return
	}

	logging.Warn("Request carries no recognized message class",
		zap.String("remote_addr", remoteAddr),
	)
}

// handleCommand executes a door motion command
func (s *Server) handleCommand(cmd string, msgID any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case protocol.CmdOpen:
		s.startMotionLocked(false)
	case protocol.CmdOpenAndHold:
		s.startMotionLocked(true)
	case protocol.CmdClose:
		s.startCloseLocked()
	default:
		return map[string]any{"CMD": cmd, "success": "false", "msgID": msgID}
	}

	return map[string]any{
		"CMD":         cmd,
		"success":     "true",
		"door_status": s.door.status,
		"msgID":       msgID,
	}
}

// handleConfig answers settings queries and mutations
func (s *Server) handleConfig(cmd string, msgID any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := map[string]any{"CMD": cmd, "success": "true", "msgID": msgID}

	switch cmd {
	case protocol.CmdGetSettings:
		reply["settings"] = s.door.settingsCopy()

	case protocol.CmdGetDoorStatus:
		reply["door_status"] = s.door.status

	case protocol.CmdGetSensors:
		reply[protocol.SettingInside] = s.door.inside
		reply[protocol.SettingOutside] = s.door.outside

	case protocol.CmdEnableInside, protocol.CmdDisableInside:
		s.door.inside = cmd == protocol.CmdEnableInside
		reply[protocol.SettingInside] = s.door.inside

	case protocol.CmdEnableOutside, protocol.CmdDisableOutside:
		s.door.outside = cmd == protocol.CmdEnableOutside
		reply[protocol.SettingOutside] = s.door.outside

	case protocol.CmdGetPower:
		reply[protocol.SettingPowerState] = s.door.power

	case protocol.CmdPowerOn, protocol.CmdPowerOff:
		s.door.power = cmd == protocol.CmdPowerOn
		reply[protocol.SettingPowerState] = s.door.power

	case protocol.CmdGetTimersEnabled:
		reply[protocol.SettingTimersEnabled] = s.door.timers

	case protocol.CmdEnableTimers, protocol.CmdDisableTimers:
		s.door.timers = cmd == protocol.CmdEnableTimers
		reply[protocol.SettingTimersEnabled] = s.door.timers

	default:
		reply["success"] = "false"
	}

	return reply
}

// reply serializes and writes one message to a single client
func (s *Server) reply(conn net.Conn, remoteAddr string, m map[string]any) {
	data, err := json.Marshal(m)
	if err != nil {
		logging.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	logging.LogTX(remoteAddr, data)
	if _, err := conn.Write(data); err != nil {
		logging.Error("Failed to write reply",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// broadcastStatusLocked announces a door status change to every connected
// client. Caller holds s.mu.
func (s *Server) broadcastStatusLocked() {
	data, err := json.Marshal(map[string]any{
		"CMD":         protocol.CmdDoorStatus,
		"success":     "true",
		"door_status": s.door.status,
	})
	if err != nil {
		return
	}
	for addr, conn := range s.activeConns {
		logging.LogTX(addr, data)
		if _, err := conn.Write(data); err != nil {
			logging.Error("Failed to broadcast status",
				zap.String("remote_addr", addr),
				zap.Error(err),
			)
		}
	}
}

// Shutdown gracefully shuts down the simulator
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down simulator...")

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	s.door.stopMotionLocked()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of active connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
