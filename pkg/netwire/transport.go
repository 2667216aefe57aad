package netwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Send writes m to w as an 8-byte big-endian length prefix followed by its
// CBOR encoding, per spec.md §6's wire format.
func Send(w io.Writer, m Message) error {
	data, err := m.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("netwire: encoding message: %w", err)
	}
	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(len(data)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("netwire: writing length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("netwire: writing message body: %w", err)
	}
	return nil
}

// MaxMessageSize bounds the length prefix a peer may claim, guarding
// against a hostile or corrupt sender forcing an unbounded allocation.
const MaxMessageSize = 64 * 1024 * 1024

// Receive reads one length-prefixed CBOR message from r.
func Receive(r io.Reader) (Message, error) {
	var lenPrefix [8]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Message{}, fmt.Errorf("netwire: reading length prefix: %w", err)
	}
	n := binary.BigEndian.Uint64(lenPrefix[:])
	if n > MaxMessageSize {
		return Message{}, fmt.Errorf("netwire: message length %d exceeds maximum %d", n, MaxMessageSize)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Message{}, fmt.Errorf("netwire: reading message body: %w", err)
	}
	var m Message
	if err := m.UnmarshalCBOR(data); err != nil {
		return Message{}, fmt.Errorf("netwire: decoding message: %w", err)
	}
	return m, nil
}
