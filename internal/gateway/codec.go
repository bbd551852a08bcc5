package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownType is returned when a frame names no known command or event.
var ErrUnknownType = errors.New("gateway: unknown frame type")

// Codec frames commands and events on the wire. Every frame is an envelope
// of type name, request id and a body encoded by the same codec.
type Codec interface {
	Name() string
	// Binary reports whether frames should travel as binary messages.
	Binary() bool
	Marshal(typ string, id RequestID, body any) ([]byte, error)
	Unmarshal(data []byte) (Frame, error)
}

// Frame is a decoded envelope whose body has not been decoded yet.
type Frame struct {
	Type  string
	ReqID RequestID
	body  []byte
	dec   func([]byte, any) error
}

// Decode decodes the frame body into v.
func (f Frame) Decode(v any) error {
	if len(f.body) == 0 {
		return nil
	}
	return f.dec(f.body, v)
}

// NewCodec returns the codec registered under name: "json" or "msgpack".
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("gateway: unknown codec %q", name)
}

// JSONCodec frames messages as JSON text.
type JSONCodec struct{}

type jsonEnvelope struct {
	Type  string          `json:"type"`
	ReqID RequestID       `json:"req_id,omitempty"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Marshal(typ string, id RequestID, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", typ, err)
	}
	return json.Marshal(jsonEnvelope{Type: typ, ReqID: id, Body: raw})
}

func (JSONCodec) Unmarshal(data []byte) (Frame, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Frame{Type: env.Type, ReqID: env.ReqID, body: env.Body, dec: json.Unmarshal}, nil
}

// MsgpackCodec frames messages as MessagePack. Struct fields are keyed by
// their json tag names so both codecs share one schema.
type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Type  string    `json:"type"`
	ReqID RequestID `json:"req_id,omitempty"`
	Body  []byte    `json:"body,omitempty"`
}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Marshal(typ string, id RequestID, body any) ([]byte, error) {
	raw, err := msgpackMarshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", typ, err)
	}
	return msgpackMarshal(msgpackEnvelope{Type: typ, ReqID: id, Body: raw})
}

func (MsgpackCodec) Unmarshal(data []byte) (Frame, error) {
	var env msgpackEnvelope
	if err := msgpackUnmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Frame{Type: env.Type, ReqID: env.ReqID, body: env.Body, dec: msgpackUnmarshal}, nil
}

func msgpackMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// EncodeCommand frames an outbound command.
func EncodeCommand(c Codec, out Outbound) ([]byte, error) {
	if out.Command == nil {
		return nil, fmt.Errorf("%w: nil command", ErrMalformed)
	}
	return c.Marshal(out.Command.Kind().String(), out.ID, out.Command)
}

// EncodeEvent frames an inbound event.
func EncodeEvent(c Codec, ev Event) ([]byte, error) {
	return c.Marshal(ev.Kind().String(), ev.RequestID(), ev)
}

// DecodeCommand decodes a command frame.
func DecodeCommand(c Codec, data []byte) (Outbound, error) {
	f, err := c.Unmarshal(data)
	if err != nil {
		return Outbound{}, err
	}
	decode, ok := commandDecoders[f.Type]
	if !ok {
		return Outbound{}, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	cmd, err := decode(f)
	if err != nil {
		return Outbound{}, fmt.Errorf("decode %s: %w", f.Type, err)
	}
	return Outbound{ID: f.ReqID, Command: cmd}, nil
}

// DecodeEvent decodes an event frame.
func DecodeEvent(c Codec, data []byte) (Event, error) {
	f, err := c.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	decode, ok := eventDecoders[f.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	ev, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Type, err)
	}
	return ev, nil
}

type eventPtr[T any] interface {
	*T
	setRequestID(RequestID)
}

func decodeEvent[T Event, P eventPtr[T]](f Frame) (Event, error) {
	var v T
	if err := f.Decode(P(&v)); err != nil {
		return nil, err
	}
	P(&v).setRequestID(f.ReqID)
	return v, nil
}

func decodeCommand[T Command](f Frame) (Command, error) {
	var v T
	if err := f.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

var eventDecoders = map[string]func(Frame) (Event, error){
	EventContractResolved.String():  decodeEvent[ContractResolved],
	EventContractEnd.String():       decodeEvent[ContractEnd],
	EventPriceTick.String():         decodeEvent[PriceTick],
	EventOptionComputation.String(): decodeEvent[OptionComputation],
	EventOptionChain.String():       decodeEvent[OptionChain],
	EventOptionChainEnd.String():    decodeEvent[OptionChainEnd],
	EventError.String():             decodeEvent[ErrorNotice],
	EventAccountValue.String():      decodeEvent[AccountValue],
	EventAccountSummaryEnd.String(): decodeEvent[AccountSummaryEnd],
	EventPosition.String():          decodeEvent[Position],
	EventPositionEnd.String():       decodeEvent[PositionEnd],
	EventOpenOrder.String():         decodeEvent[OpenOrder],
	EventOpenOrderEnd.String():      decodeEvent[OpenOrderEnd],
	EventAccountList.String():       decodeEvent[AccountList],
}

var commandDecoders = map[string]func(Frame) (Command, error){
	CmdResolveContract.String():      decodeCommand[ResolveContract],
	CmdSubscribeQuote.String():       decodeCommand[SubscribeQuote],
	CmdCancelQuote.String():          decodeCommand[CancelQuote],
	CmdOptionParams.String():         decodeCommand[OptionParams],
	CmdAccountSummary.String():       decodeCommand[AccountSummary],
	CmdCancelAccountSummary.String(): decodeCommand[CancelAccountSummary],
	CmdPositions.String():            decodeCommand[Positions],
	CmdOpenOrders.String():           decodeCommand[OpenOrders],
	CmdManagedAccounts.String():      decodeCommand[ManagedAccounts],
}
