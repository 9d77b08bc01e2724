package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolError reports a frame that cannot be decoded into a Message.
type ProtocolError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error (%s): %s", e.Kind, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Encode writes m as a flat JSON object with a "type" field.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, &ProtocolError{Message: "nil message"}
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	tag, _ := json.Marshal(m.Kind())
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode reads a frame written by Encode.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ProtocolError{Message: "malformed frame", Err: err}
	}

	switch head.Type {
	case KindJoin:
		return decodeAs[Join](head.Type, data)
	case KindAck:
		return decodeAs[Ack](head.Type, data)
	case KindSyncUpdate:
		return decodeAs[SyncUpdate](head.Type, data)
	case KindAction:
		return decodeAs[Submit](head.Type, data)
	case KindConflict:
		return decodeAs[Conflict](head.Type, data)
	case KindError:
		return decodeAs[Error](head.Type, data)
	case KindPing:
		return decodeAs[Ping](head.Type, data)
	case KindPong:
		return decodeAs[Pong](head.Type, data)
	case "":
		return nil, &ProtocolError{Message: "missing type"}
	default:
		return nil, &ProtocolError{Kind: head.Type, Message: "unknown message type"}
	}
}

func decodeAs[M Message](kind Kind, data []byte) (Message, error) {
	var m M
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ProtocolError{Kind: kind, Message: "malformed body", Err: err}
	}
	return m, nil
}
