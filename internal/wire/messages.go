// Package wire is the TCP wire protocol the exchange server accepts
// orders over. This is the out-of-core CLI/notebook-wrapper surface (spec
// §1 Non-goals boundary) reimplemented as a thin binary protocol; it
// carries no matching or settlement logic of its own, only enough to
// construct a matcher.Order and hand it to broker.Broker. Adapted from the
// teacher's internal/net/messages.go, with float64 prices/uint64
// quantities replaced by the domain's integer cents and caller-supplied
// order ids (spec §9).
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"matchbroker/internal/matcher"
)

var (
	ErrMessageTooShort    = errors.New("message too short")
	ErrInvalidMessageType = errors.New("invalid message type")
)

// MessageType identifies the kind of inbound client message.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

// BaseMessageHeaderLen is the leading MessageType tag every message starts
// with.
const BaseMessageHeaderLen = 2

// NewOrderMessageHeaderLen is the fixed portion of a NewOrder message,
// before the variable-length ticker and username.
const NewOrderMessageHeaderLen = 8 + 1 + 1 + 8 + 8 + 1 + 1

// CancelOrderMessageHeaderLen is the fixed portion of a CancelOrder
// message, before the variable-length ticker and username.
const CancelOrderMessageHeaderLen = 8 + 1 + 1

// Message is any parsed inbound client message.
type Message interface {
	GetType() MessageType
}

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// NewOrderMessage carries enough to build a matcher.Order plus the
// submitting client's display name.
type NewOrderMessage struct {
	BaseMessage
	OrderID    int64
	Side       matcher.Side
	Type       matcher.OrderType
	PriceCents int64
	Amount     int64
	Ticker     string
	Username   string
}

// Order builds the matching-engine order this message describes. TraderID
// is resolved by the caller (the server maps Username to an account id);
// it is not carried on the wire.
func (m NewOrderMessage) Order(traderID int) matcher.Order {
	return matcher.Order{
		ID:         m.OrderID,
		TraderID:   traderID,
		Side:       m.Side,
		Type:       m.Type,
		Amount:     m.Amount,
		PriceCents: m.PriceCents,
	}
}

type CancelOrderMessage struct {
	BaseMessage
	OrderID  int64
	Ticker   string
	Username string
}

// ParseMessage decodes a raw client frame into a typed Message.
func ParseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return nil, fmt.Errorf("%w: header", ErrMessageTooShort)
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]

	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, fmt.Errorf("%w: new order header", ErrMessageTooShort)
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.OrderID = int64(binary.BigEndian.Uint64(msg[0:8]))
	m.Side = matcher.Side(msg[8])
	m.Type = matcher.OrderType(msg[9])
	m.PriceCents = int64(binary.BigEndian.Uint64(msg[10:18]))
	m.Amount = int64(binary.BigEndian.Uint64(msg[18:26]))
	tickerLen := int(msg[26])
	usernameLen := int(msg[27])

	rest := msg[NewOrderMessageHeaderLen:]
	if len(rest) < tickerLen+usernameLen {
		return NewOrderMessage{}, fmt.Errorf("%w: new order variable fields", ErrMessageTooShort)
	}
	m.Ticker = string(rest[:tickerLen])
	m.Username = string(rest[tickerLen : tickerLen+usernameLen])
	return m, nil
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, fmt.Errorf("%w: cancel order header", ErrMessageTooShort)
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.OrderID = int64(binary.BigEndian.Uint64(msg[0:8]))
	tickerLen := int(msg[8])
	usernameLen := int(msg[9])
	rest := msg[CancelOrderMessageHeaderLen:]
	if len(rest) < tickerLen+usernameLen {
		return CancelOrderMessage{}, fmt.Errorf("%w: cancel order variable fields", ErrMessageTooShort)
	}
	m.Ticker = string(rest[:tickerLen])
	m.Username = string(rest[tickerLen : tickerLen+usernameLen])
	return m, nil
}

// EncodeNewOrder serializes a NewOrder request, mirroring the layout
// ParseMessage expects. Used by the CLI test client.
func EncodeNewOrder(orderID int64, side matcher.Side, orderType matcher.OrderType, priceCents, amount int64, ticker, username string) []byte {
	total := BaseMessageHeaderLen + NewOrderMessageHeaderLen + len(ticker) + len(username)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	binary.BigEndian.PutUint64(buf[2:10], uint64(orderID))
	buf[10] = byte(side)
	buf[11] = byte(orderType)
	binary.BigEndian.PutUint64(buf[12:20], uint64(priceCents))
	binary.BigEndian.PutUint64(buf[20:28], uint64(amount))
	buf[28] = byte(len(ticker))
	buf[29] = byte(len(username))
	offset := BaseMessageHeaderLen + NewOrderMessageHeaderLen
	copy(buf[offset:], ticker)
	copy(buf[offset+len(ticker):], username)
	return buf
}

// EncodeCancelOrder serializes a CancelOrder request.
func EncodeCancelOrder(orderID int64, ticker, username string) []byte {
	total := BaseMessageHeaderLen + CancelOrderMessageHeaderLen + len(ticker) + len(username)
	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], uint64(orderID))
	buf[10] = byte(len(ticker))
	buf[11] = byte(len(username))
	offset := BaseMessageHeaderLen + CancelOrderMessageHeaderLen
	copy(buf[offset:], ticker)
	copy(buf[offset+len(ticker):], username)
	return buf
}

// ReportType distinguishes an order acknowledgement from an out-of-band
// error report.
type ReportType byte

const (
	OrderAck ReportType = iota
	ErrorReport
)

// Report is the server's response to a client message: whether an order
// was accepted, and why not if it wasn't. CorrelationID is a server-minted
// identifier for this request/response exchange, independent of the
// caller-supplied OrderID (spec §9 keeps order ids purely caller-owned;
// this is a transport-level concern for tracing replies across a
// multiplexed connection, not part of the order's identity).
type Report struct {
	Type          ReportType
	OrderID       int64
	CorrelationID string
	Success       bool
	Err           string
}

// correlationIDLen is the fixed wire width of a canonical uuid string
// (8-4-4-4-12 hex plus hyphens).
const correlationIDLen = 36

const reportFixedHeaderLen = 1 + 8 + correlationIDLen + 1 + 2

// NewReport builds a Report stamped with a fresh server-minted correlation
// id.
func NewReport(typ ReportType, orderID int64, success bool, errStr string) Report {
	return Report{
		Type:          typ,
		OrderID:       orderID,
		CorrelationID: uuid.NewString(),
		Success:       success,
		Err:           errStr,
	}
}

// Serialize converts a Report to its wire form.
func (r Report) Serialize() []byte {
	buf := make([]byte, reportFixedHeaderLen+len(r.Err))
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.OrderID))
	correlation := make([]byte, correlationIDLen)
	copy(correlation, r.CorrelationID)
	copy(buf[9:9+correlationIDLen], correlation)
	successOffset := 9 + correlationIDLen
	if r.Success {
		buf[successOffset] = 1
	}
	binary.BigEndian.PutUint16(buf[successOffset+1:successOffset+3], uint16(len(r.Err)))
	copy(buf[reportFixedHeaderLen:], r.Err)
	return buf
}

// ParseReport decodes a Report frame, used by the CLI test client.
func ParseReport(raw []byte) (Report, error) {
	if len(raw) < reportFixedHeaderLen {
		return Report{}, fmt.Errorf("%w: report header", ErrMessageTooShort)
	}
	successOffset := 9 + correlationIDLen
	r := Report{
		Type:          ReportType(raw[0]),
		OrderID:       int64(binary.BigEndian.Uint64(raw[1:9])),
		CorrelationID: strings.TrimRight(string(raw[9:9+correlationIDLen]), "\x00"),
		Success:       raw[successOffset] == 1,
	}
	errLen := int(binary.BigEndian.Uint16(raw[successOffset+1 : successOffset+3]))
	if len(raw[reportFixedHeaderLen:]) < errLen {
		return Report{}, fmt.Errorf("%w: report err string", ErrMessageTooShort)
	}
	r.Err = string(raw[reportFixedHeaderLen : reportFixedHeaderLen+errLen])
	return r, nil
}
