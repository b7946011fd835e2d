package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbroker/internal/matcher"
)

// frame is the JSON payload pushed to every websocket subscriber. Enum
// fields serialize by name, integer fields verbatim, and an absent order or
// bar is omitted — mirroring original_source/pybroker/event_publisher.py's
// wire convention but over the pack's websocket transport instead of MQTT.
// Frames carry no best bid/ask fields.
type frame struct {
	Subject string       `json:"subject"`
	Order   *orderFrame  `json:"order,omitempty"`
	Bar     *TickBar     `json:"bar,omitempty"`
}

type orderFrame struct {
	ID         int64  `json:"id"`
	TraderID   int    `json:"traderId"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	PriceCents int64  `json:"priceCents"`
	Tick       int64  `json:"tick"`
}

const eventQueueSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BroadcastSink fans every published event out to every currently
// subscribed websocket connection. Publishing never blocks the caller: a
// full outbound queue simply drops the event, since spec §9 requires the
// sink to never fail or stall a trade.
type BroadcastSink struct {
	topic string

	mu      sync.Mutex
	clients map[*websocket.Conn]chan frame
}

// NewBroadcastSink builds a sink that namespaces every subject under
// topic, e.g. "{topic}/{asset}/order_executed".
func NewBroadcastSink(topic string) *BroadcastSink {
	return &BroadcastSink{
		topic:   topic,
		clients: make(map[*websocket.Conn]chan frame),
	}
}

// ServeHTTP upgrades an incoming request to a websocket and registers it
// as a subscriber until the connection closes.
func (s *BroadcastSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("event sink: failed to upgrade websocket")
		return
	}

	outbound := make(chan frame, eventQueueSize)
	s.mu.Lock()
	s.clients[conn] = outbound
	s.mu.Unlock()

	t := &tomb.Tomb{}
	t.Go(func() error {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			select {
			case <-t.Dying():
				return nil
			case f := <-outbound:
				if err := conn.WriteJSON(f); err != nil {
					return err
				}
			}
		}
	})
}

func (s *BroadcastSink) publish(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- f:
		default:
			// Subscriber is behind; drop rather than block the trade.
		}
	}
}

func toOrderFrame(order matcher.Order) *orderFrame {
	return &orderFrame{
		ID:         order.ID,
		TraderID:   order.TraderID,
		Side:       order.Side.String(),
		Type:       order.Type.String(),
		Amount:     order.Amount,
		PriceCents: order.PriceCents,
		Tick:       order.Tick,
	}
}

func (s *BroadcastSink) OrderExecuted(asset string, order matcher.Order) {
	s.publish(frame{Subject: s.topic + "/" + asset + "/order_executed", Order: toOrderFrame(order)})
}

func (s *BroadcastSink) OrderCancelled(asset string, order matcher.Order) {
	s.publish(frame{Subject: s.topic + "/" + asset + "/order_cancelled", Order: toOrderFrame(order)})
}

func (s *BroadcastSink) PublishTickBar(asset string, bar TickBar) {
	b := bar
	s.publish(frame{Subject: s.topic + "/" + asset + "/bars/tick", Bar: &b})
}

// marshal is exposed for tests that want to inspect the wire shape without
// standing up a real websocket connection.
func marshal(f frame) ([]byte, error) {
	return json.Marshal(f)
}
