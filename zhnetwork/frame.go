package zhnetwork

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PayloadCap is the maximum number of user-data bytes a single frame can
// carry. Larger payloads must be rejected by the caller; the engine never
// fragments.
const PayloadCap = 218

// MAC is a 6-byte link-layer address, as learned from the link at startup.
type MAC [6]byte

// Broadcast is the reserved address meaning "every reachable node".
var Broadcast = MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// Zero is the unset/unknown address.
var Zero MAC

func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsBroadcast reports whether m is the reserved broadcast address.
func (m MAC) IsBroadcast() bool { return m == Broadcast }

// IsZero reports whether m was never assigned.
func (m MAC) IsZero() bool { return m == Zero }

// MessageType identifies which of the five frame kinds a frame carries.
type MessageType byte

const (
	MessageBroadcast MessageType = iota
	MessageUnicast
	MessageDeliveryConfirm
	MessageSearchRequest
	MessageSearchResponse
)

func (t MessageType) String() string {
	switch t {
	case MessageBroadcast:
		return "BROADCAST"
	case MessageUnicast:
		return "UNICAST"
	case MessageDeliveryConfirm:
		return "DELIVERY_CONFIRM"
	case MessageSearchRequest:
		return "SEARCH_REQUEST"
	case MessageSearchResponse:
		return "SEARCH_RESPONSE"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// IsFlood reports whether frames of this type are carried to the broadcast
// MAC rather than routed to a specific next hop.
func (t MessageType) IsFlood() bool {
	switch t {
	case MessageBroadcast, MessageSearchRequest, MessageSearchResponse:
		return true
	default:
		return false
	}
}

// Frame is the engine's in-memory representation of a message. It mirrors
// the wire layout plus the receiver-populated SenderMAC, which is never
// transmitted: sender_mac must never be trusted if present on the wire,
// because it is purely a receive-side annotation.
//
// The five message kinds only use a subset of these fields; see the
// per-kind constructors in variants.go for the tagged-union view used when
// constructing frames, which avoids a "clear payload / zero length"
// re-initialization dance on a single fat struct.
type Frame struct {
	Type           MessageType
	NetworkID      uint32
	MessageID      uint32
	ConfirmID      uint32
	OriginalTarget MAC
	OriginalSender MAC
	SenderMAC      MAC // not on wire; set by the receiver from the link callback
	Payload        [PayloadCap]byte
	PayloadLen     uint8
}

// wireHeaderLen is the on-wire length of every field except the payload;
// the receive-only SenderMAC field is not transmitted at all.
const wireHeaderLen = 1 + 4 + 4 + 4 + 6 + 6 + 1 // type + network + message + confirm + target + sender + payload_len

// WireFrameLen is the exact byte length of every transmission: every node
// on the mesh must agree on this value network-wide.
const WireFrameLen = wireHeaderLen + PayloadCap

// wireFrame is the packed on-wire layout (native endianness, homogeneous
// deployments only). All fields are fixed width so a single binary.Write/Read
// round-trips it.
type wireFrame struct {
	MessageType    byte
	NetworkID      uint32
	MessageID      uint32
	ConfirmID      uint32
	OriginalTarget MAC
	OriginalSender MAC
	Payload        [PayloadCap]byte
	PayloadLen     byte
}

// Encode serializes f into the exact WireFrameLen-byte wire format. SenderMAC
// is intentionally omitted; it carries no meaning until a receiver stamps it.
func (f Frame) Encode() []byte {
	w := wireFrame{
		MessageType:    byte(f.Type),
		NetworkID:      f.NetworkID,
		MessageID:      f.MessageID,
		ConfirmID:      f.ConfirmID,
		OriginalTarget: f.OriginalTarget,
		OriginalSender: f.OriginalSender,
		Payload:        f.Payload,
		PayloadLen:     f.PayloadLen,
	}
	var buf bytes.Buffer
	buf.Grow(WireFrameLen)
	// wireFrame has no padding: byte, 3x uint32, 2x[6]byte, [218]byte, byte.
	_ = binary.Write(&buf, binary.NativeEndian, &w)
	return buf.Bytes()
}

// Decode parses exactly WireFrameLen bytes into a Frame. SenderMAC is left
// zero; the caller (the link adapter's receive path) must stamp it from the
// link callback's source address.
func Decode(raw []byte) (Frame, error) {
	if len(raw) != WireFrameLen {
		return Frame{}, fmt.Errorf("zhnetwork: frame length %d, want %d", len(raw), WireFrameLen)
	}
	var w wireFrame
	if err := binary.Read(bytes.NewReader(raw), binary.NativeEndian, &w); err != nil {
		return Frame{}, fmt.Errorf("zhnetwork: decode frame: %w", err)
	}
	return Frame{
		Type:           MessageType(w.MessageType),
		NetworkID:      w.NetworkID,
		MessageID:      w.MessageID,
		ConfirmID:      w.ConfirmID,
		OriginalTarget: w.OriginalTarget,
		OriginalSender: w.OriginalSender,
		Payload:        w.Payload,
		PayloadLen:     w.PayloadLen,
	}, nil
}

// PayloadBytes returns the meaningful slice of the payload (PayloadLen
// bytes), not the full fixed-size backing array.
func (f Frame) PayloadBytes() []byte {
	return f.Payload[:f.PayloadLen]
}
