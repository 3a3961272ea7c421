// Package encoding packs solved grids for the wire and the run log.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// Name is the value carried in the "encoding" field of GRID messages.
const Name = "RLE"

var ErrLength = errors.New("encoding: decoded length does not match the grid")

// Run is one stretch of identical tile ids.
type Run struct {
	ID  uint16
	Len int
}

// Runs splits ids into maximal runs.
func Runs(ids []uint16) []Run {
	var out []Run
	for i := 0; i < len(ids); {
		r := Run{ID: ids[i], Len: 1}
		for j := i + 1; j < len(ids) && ids[j] == r.ID; j++ {
			r.Len++
		}
		out = append(out, r)
		i += r.Len
	}
	return out
}

// EncodeRLE writes ids (in layer order) as base64 of uvarint (id, run) pairs.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	for _, r := range Runs(ids) {
		n := binary.PutUvarint(tmp[:], uint64(r.ID))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(r.Len))
		buf.Write(tmp[:n])
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. cells is the expected grid volume; a stream
// that expands to any other length is rejected before it is materialised.
func DecodeRLE(b64 string, cells int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, cells)
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("encoding: bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("encoding: bad varint at %d", i)
		}
		i += n
		if id > 0xFFFF {
			return nil, fmt.Errorf("encoding: tile id too large: %d", id)
		}
		if run == 0 || run > uint64(cells-len(out)) {
			return nil, fmt.Errorf("%w: run of %d after %d of %d cells", ErrLength, run, len(out), cells)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(id))
		}
	}
	if len(out) != cells {
		return nil, fmt.Errorf("%w: got %d want %d", ErrLength, len(out), cells)
	}
	return out, nil
}
