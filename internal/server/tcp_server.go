package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/alerting"
	"github.com/smukkama/prayer-server/internal/connection"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/protocol"
	"github.com/smukkama/prayer-server/internal/telemetry"
	"github.com/smukkama/prayer-server/internal/timer"
	"github.com/smukkama/prayer-server/pkg/config"
)

// StateSource publishes evaluated countdown states
type StateSource interface {
	Subscribe() (<-chan prayer.State, func())
	State() prayer.State
}

// TCPServer streams the countdown to display boards
type TCPServer struct {
	config       config.StreamConfig
	connManager  *connection.Manager
	timerManager *timer.Manager
	states       StateSource
	logger       zerolog.Logger
	listener     net.Listener
	wg           sync.WaitGroup
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewTCPServer creates a new countdown stream server
func NewTCPServer(cfg config.StreamConfig, connManager *connection.Manager, timerManager *timer.Manager, states StateSource, logger zerolog.Logger) *TCPServer {
	return &TCPServer{
		config:       cfg,
		connManager:  connManager,
		timerManager: timerManager,
		states:       states,
		logger:       logger.With().Str("component", "stream").Logger(),
		stopCh:       make(chan struct{}),
	}
}

// Start listens for displays and begins broadcasting states
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.listener = listener
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("countdown stream listening")

	updates, unsubscribe := s.states.Subscribe()

	s.wg.Add(2)
	go s.acceptConnections()
	go s.broadcastStates(updates, unsubscribe)

	return nil
}

// Addr returns the bound listen address
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the server and disconnects every display
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			s.listener.Close()
		}
	})

	s.wg.Wait()
	s.logger.Info().Msg("countdown stream stopped")
}

// Name implements alerting.Sink
func (s *TCPServer) Name() string { return "display" }

// Deliver implements alerting.Sink by broadcasting the alert to every display
func (s *TCPServer) Deliver(ctx context.Context, f alerting.Fire) error {
	line, err := protocol.EncodeLine(protocol.NewAlertMessage(f.Name, f.Time, f.Sound))
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	s.broadcast(line)
	return nil
}

func (s *TCPServer) broadcastStates(updates <-chan prayer.State, unsubscribe func()) {
	defer s.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-s.stopCh:
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			line, err := protocol.EncodeLine(protocol.NewCountdownMessage(state))
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to encode countdown")
				continue
			}
			s.broadcast(line)
		}
	}
}

func (s *TCPServer) broadcast(line []byte) {
	for _, id := range s.connManager.Broadcast(line, s.config.WriteTimeout) {
		s.logger.Debug().Str("connection_id", id).Msg("write failed, closing display")
		if client, ok := s.connManager.Get(id); ok {
			client.Close()
		}
	}
}

func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("failed to accept connection")
			continue
		}

		if s.config.MaxConnections > 0 && s.connManager.Count() >= s.config.MaxConnections {
			s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("maximum connections reached, rejecting")
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connectionID := uuid.New().String()
	log := s.logger.With().Str("connection_id", connectionID).Logger()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("new connection")

	// stop closes the connection so the blocked read below returns
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.stopCh:
			conn.Close()
		case <-done:
		}
	}()

	if s.config.IdentifyTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.IdentifyTimeout))
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Debug().Err(err).Msg("failed to read subscribe message")
		return
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		log.Debug().Err(err).Msg("invalid subscribe message")
		s.sendDirect(conn, protocol.NewErrorAck(err))
		return
	}

	sub, ok := msg.(*protocol.SubscribeMessage)
	if !ok {
		s.sendDirect(conn, protocol.NewErrorAck(errors.New("expected subscribe message")))
		return
	}

	client, err := s.connManager.Register(connectionID, sub.Display, conn)
	if err != nil {
		log.Warn().Err(err).Msg("failed to register display")
		s.sendDirect(conn, protocol.NewErrorAck(err))
		return
	}
	telemetry.StreamClients.Set(float64(s.connManager.Count()))
	defer func() {
		s.connManager.Unregister(connectionID)
		s.timerManager.Cancel(inactivityTimerID(connectionID))
		telemetry.StreamClients.Set(float64(s.connManager.Count()))
		log.Info().Str("display", sub.Display).Msg("display disconnected")
	}()

	log.Info().Str("display", sub.Display).Msg("display subscribed")

	if err := s.send(client, protocol.NewAckMessage(protocol.AckStatusSubscribed)); err != nil {
		return
	}
	if err := s.send(client, protocol.NewCountdownMessage(s.states.State())); err != nil {
		return
	}
	client.MarkReady()

	s.scheduleInactivityTimer(client)
	conn.SetReadDeadline(time.Time{})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Debug().Err(err).Msg("connection closed")
			return
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			s.send(client, protocol.NewErrorAck(err))
			continue
		}

		switch msg.(type) {
		case *protocol.KeepaliveMessage:
			if err := s.send(client, protocol.NewAckMessage(protocol.AckStatusAlive)); err != nil {
				return
			}
		default:
			s.send(client, protocol.NewErrorAck(fmt.Errorf("unexpected %T after subscribe", msg)))
		}

		s.connManager.UpdateActivity(connectionID)
		s.scheduleInactivityTimer(client)
	}
}

func (s *TCPServer) send(client *connection.Client, msg any) error {
	line, err := protocol.EncodeLine(msg)
	if err != nil {
		return err
	}
	return client.Write(line, s.config.WriteTimeout)
}

func (s *TCPServer) sendDirect(conn net.Conn, msg any) {
	line, err := protocol.EncodeLine(msg)
	if err != nil {
		return
	}
	if s.config.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	conn.Write(line)
}

func inactivityTimerID(connectionID string) string {
	return fmt.Sprintf("inactivity-%s", connectionID)
}

func (s *TCPServer) scheduleInactivityTimer(client *connection.Client) {
	if s.config.InactivityTimeout <= 0 {
		return
	}

	id := client.ID
	s.timerManager.Schedule(inactivityTimerID(id), time.Now().Add(s.config.InactivityTimeout), func() {
		s.logger.Info().
			Str("connection_id", id).
			Dur("idle", time.Since(client.LastSeen())).
			Msg("inactivity timeout")
		client.Close()
	})
}
