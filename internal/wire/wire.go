// Package wire frames the protocol's exchange buffers: a stream of
// length-prefixed JSON records per destination rank. JSON keeps the records
// debuggable and the framing keeps records self-delimiting so one buffer can
// carry any mix of record counts, including zero.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/meshpart/meshpart/pkg/domain"
)

// Announcement tells a sharing/ghosting rank that an entity's ownership is
// moving.
type Announcement struct {
	Key      domain.EntityKey `json:"key"`
	NewOwner int              `json:"new_owner"`
}

// Invalidation asks a rank to drop its ghost copy of an entity.
type Invalidation struct {
	Key domain.EntityKey `json:"key"`
}

// AppendRecord marshals v and appends it to buf behind a u32 length prefix.
func AppendRecord(buf []byte, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode record: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	buf = append(buf, prefix[:]...)
	return append(buf, body...), nil
}

// Reader iterates the records of one received buffer.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps a received buffer.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next decodes the next record into v. It returns false with a nil error at
// the clean end of the buffer, and false with an error on truncation or a
// record that does not decode.
func (r *Reader) Next(v any) (bool, error) {
	if r.off == len(r.buf) {
		return false, nil
	}
	if len(r.buf)-r.off < 4 {
		return false, fmt.Errorf("wire: truncated record prefix at offset %d", r.off)
	}
	n := int(binary.BigEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	if len(r.buf)-r.off < n {
		return false, fmt.Errorf("wire: truncated record body at offset %d (want %d bytes, have %d)",
			r.off, n, len(r.buf)-r.off)
	}
	body := r.buf[r.off : r.off+n]
	r.off += n
	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("wire: decode record: %w", err)
	}
	return true, nil
}
