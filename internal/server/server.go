// Package server is the TCP front door onto a broker.Broker: it accepts
// connections, decodes wire.Message frames, resolves each connection's
// display name to a trader id (auto-opening an account on first contact),
// and reports back whether the order was accepted. Adapted from the
// teacher's internal/net/server.go, with the gRPC-shaped Engine interface
// collapsed down to the single broker.Broker entry point for
// PlaceOrder/CancelOrder, not because it is part of the exchange's own
// semantics, but because a TCP listener has to live somewhere to exercise
// them.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbroker/internal/broker"
	"matchbroker/internal/transport"
	"matchbroker/internal/wire"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 10 * time.Second
)

type clientSession struct {
	conn net.Conn
}

type clientMessage struct {
	clientAddress string
	msg           wire.Message
}

// Server owns the listener, the worker pool draining connections, and the
// registry mapping a client's display name to a broker trader id.
type Server struct {
	address string
	port    int
	broker  *broker.Broker

	pool   transport.WorkerPool
	cancel context.CancelFunc

	mu             sync.Mutex
	sessions       map[string]clientSession
	traderIDByName map[string]int
	nextTraderID   int

	messages chan clientMessage
}

// New builds a Server that dispatches accepted orders to b.
func New(address string, port int, b *broker.Broker) *Server {
	return &Server{
		address:        address,
		port:           port,
		broker:         b,
		pool:           transport.NewWorkerPool(defaultNWorkers),
		sessions:       make(map[string]clientSession),
		traderIDByName: make(map[string]int),
		nextTraderID:   1,
		messages:       make(chan clientMessage, 1),
	}
}

// Shutdown cancels the server's run context.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled. It blocks.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("client connected")
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.messages:
			if err := s.handle(cm); err != nil {
				log.Error().Err(err).Str("clientAddress", cm.clientAddress).Msg("error handling message")
			}
		}
	}
}

func (s *Server) handle(cm clientMessage) error {
	switch m := cm.msg.(type) {
	case wire.NewOrderMessage:
		traderID := s.resolveTrader(m.Username)
		success := s.broker.PlaceOrder(m.Ticker, m.Order(traderID))
		return s.reply(cm.clientAddress, wire.NewReport(wire.OrderAck, m.OrderID, success, ""))
	case wire.CancelOrderMessage:
		traderID := s.resolveTrader(m.Username)
		err := s.broker.CancelAllOrdersForTrader(m.Ticker, traderID)
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		return s.reply(cm.clientAddress, wire.NewReport(wire.OrderAck, m.OrderID, err == nil, errStr))
	case wire.BaseMessage:
		if m.GetType() == wire.Heartbeat {
			return nil
		}
		return fmt.Errorf("%w: unhandled base message", wire.ErrInvalidMessageType)
	default:
		return wire.ErrInvalidMessageType
	}
}

// resolveTrader maps a client's display name to a stable trader id,
// opening a fresh zero-balance account the first time a name is seen.
func (s *Server) resolveTrader(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.traderIDByName[username]; ok {
		return id
	}
	id := s.nextTraderID
	s.nextTraderID++
	s.traderIDByName[username] = id
	if err := s.broker.OpenAccount(id); err != nil {
		log.Error().Err(err).Int("traderId", id).Msg("failed to auto-open account")
	}
	return id
}

func (s *Server) reply(clientAddress string, report wire.Report) error {
	s.mu.Lock()
	session, ok := s.sessions[clientAddress]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no session for %s", clientAddress)
	}
	_, err := session.conn.Write(report.Serialize())
	if err != nil {
		s.deleteSession(clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("improper type conversion for connection task")
	}
	// The connection stays open while it is re-queued for its next frame;
	// it is closed only when this worker stops reading from it.
	closeConn := func() {
		if err := conn.Close(); err != nil {
			log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("close failed")
		}
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("failed setting deadline")
		closeConn()
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		closeConn()
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			s.deleteSession(conn.RemoteAddr().String())
			closeConn()
			return nil
		}

		msg, err := wire.ParseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.deleteSession(conn.RemoteAddr().String())
			closeConn()
			return nil
		}

		s.messages <- clientMessage{clientAddress: conn.RemoteAddr().String(), msg: msg}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) deleteSession(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, address)
}
