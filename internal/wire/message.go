package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// headerSize is the on-wire MsgHeader: msgType(2) + fieldCount(2) +
// payloadLen(4) + seqNo(8), all little-endian, per spec §3.
const headerSize = 2 + 2 + 4 + 8

// fieldHeaderSize is the on-wire FieldHeader preceding each value:
// fieldId(2) + fieldType(1) + valueLen(4).
const fieldHeaderSize = 2 + 1 + 4

// field is one decoded tag-length-value entry.
type field struct {
	id    FieldID
	typ   FieldType
	value []byte
}

// Message is a builder/decoder for one IpcFrame.
type Message struct {
	MsgType MsgType
	SeqNo   uint64
	fields  []field
}

// NewMessage starts a fresh outbound message.
func NewMessage(t MsgType) *Message {
	return &Message{MsgType: t}
}

func (m *Message) AddInt64(id FieldID, v int64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	m.fields = append(m.fields, field{id, FieldInt64, buf})
}

func (m *Message) AddUint64(id FieldID, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	m.fields = append(m.fields, field{id, FieldUint64, buf})
}

func (m *Message) AddDouble(id FieldID, v float64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	m.fields = append(m.fields, field{id, FieldDouble, buf})
}

func (m *Message) AddString(id FieldID, v string) {
	m.fields = append(m.fields, field{id, FieldString, []byte(v)})
}

func (m *Message) AddBytes(id FieldID, v []byte) {
	cp := append([]byte(nil), v...)
	m.fields = append(m.fields, field{id, FieldBytes, cp})
}

// Encode serializes the message to its wire form: header + concatenated
// field sections. payloadLen and fieldCount are computed here, matching
// finalize() in the reference messaging.h.
func (m *Message) Encode() []byte {
	payloadLen := 0
	for _, f := range m.fields {
		payloadLen += fieldHeaderSize + len(f.value)
	}

	out := make([]byte, headerSize+payloadLen)
	binary.LittleEndian.PutUint16(out[0:2], uint16(m.MsgType))
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(m.fields)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(payloadLen))
	binary.LittleEndian.PutUint64(out[8:16], m.SeqNo)

	off := headerSize
	for _, f := range m.fields {
		binary.LittleEndian.PutUint16(out[off:off+2], uint16(f.id))
		out[off+2] = byte(f.typ)
		binary.LittleEndian.PutUint32(out[off+3:off+7], uint32(len(f.value)))
		off += fieldHeaderSize
		copy(out[off:off+len(f.value)], f.value)
		off += len(f.value)
	}
	return out
}

// Decode parses buf into a Message. It validates that payloadLen matches the
// sum of (fieldHeaderSize + valueLen) over all fields (spec §3 invariant)
// and rejects a buffer shorter than the header plus advertised payload.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("wire: buffer too short for header: %d bytes", len(buf))
	}

	m := &Message{
		MsgType: MsgType(binary.LittleEndian.Uint16(buf[0:2])),
		SeqNo:   binary.LittleEndian.Uint64(buf[8:16]),
	}
	fieldCount := binary.LittleEndian.Uint16(buf[2:4])
	payloadLen := binary.LittleEndian.Uint32(buf[4:8])

	if uint64(len(buf)) < uint64(headerSize)+uint64(payloadLen) {
		return nil, fmt.Errorf("wire: partial frame: have %d bytes, need %d", len(buf), headerSize+int(payloadLen))
	}

	payload := buf[headerSize : headerSize+int(payloadLen)]
	off := 0
	count := 0
	for off < len(payload) {
		if off+fieldHeaderSize > len(payload) {
			return nil, fmt.Errorf("wire: truncated field header at offset %d", off)
		}
		id := FieldID(binary.LittleEndian.Uint16(payload[off : off+2]))
		typ := FieldType(payload[off+2])
		valLen := binary.LittleEndian.Uint32(payload[off+3 : off+7])
		off += fieldHeaderSize

		if off+int(valLen) > len(payload) {
			return nil, fmt.Errorf("wire: field value overruns payload at offset %d", off)
		}
		val := append([]byte(nil), payload[off:off+int(valLen)]...)
		off += int(valLen)

		m.fields = append(m.fields, field{id, typ, val})
		count++
	}
	if off != len(payload) {
		return nil, fmt.Errorf("wire: misaligned field buffer")
	}
	if int(fieldCount) != count {
		return nil, fmt.Errorf("wire: fieldCount=%d but decoded %d fields", fieldCount, count)
	}
	return m, nil
}

func (m *Message) find(id FieldID, typ FieldType) ([]byte, bool) {
	for _, f := range m.fields {
		if f.id == id && f.typ == typ {
			return f.value, true
		}
	}
	return nil, false
}

func (m *Message) GetInt64(id FieldID) (int64, bool) {
	v, ok := m.find(id, FieldInt64)
	if !ok || len(v) != 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(v)), true
}

func (m *Message) GetUint64(id FieldID) (uint64, bool) {
	v, ok := m.find(id, FieldUint64)
	if !ok || len(v) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(v), true
}

func (m *Message) GetDouble(id FieldID) (float64, bool) {
	v, ok := m.find(id, FieldDouble)
	if !ok || len(v) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v)), true
}

func (m *Message) GetString(id FieldID) (string, bool) {
	v, ok := m.find(id, FieldString)
	if !ok {
		return "", false
	}
	return string(v), true
}

func (m *Message) GetBytes(id FieldID) ([]byte, bool) {
	return m.find(id, FieldBytes)
}

// FieldCount reports how many fields are on the message (encoded or decoded).
func (m *Message) FieldCount() int { return len(m.fields) }

// Equal compares two messages field-for-field, ignoring field order — used
// by the round-trip encode/decode property test.
func (m *Message) Equal(o *Message) bool {
	if m.MsgType != o.MsgType || m.SeqNo != o.SeqNo || len(m.fields) != len(o.fields) {
		return false
	}
	used := make([]bool, len(o.fields))
	for _, a := range m.fields {
		matched := false
		for j, b := range o.fields {
			if used[j] || a.id != b.id || a.typ != b.typ || len(a.value) != len(b.value) {
				continue
			}
			same := true
			for k := range a.value {
				if a.value[k] != b.value[k] {
					same = false
					break
				}
			}
			if same {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
