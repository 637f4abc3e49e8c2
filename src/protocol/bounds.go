package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// maxNesting bounds how deep arrays and maps may nest inside a message body.
const maxNesting = 32

// ErrMalformedBody is returned for msgpack data whose declared lengths or
// nesting do not fit the bytes actually present.
var ErrMalformedBody = errors.New("malformed msgpack body")

// checkBounds walks the first msgpack value of data without decoding it. Every
// declared string, binary and extension length must fit in the remaining
// bytes, and every array or map must have at least one byte left per element,
// so decoding never allocates more than len(data) allows.
func checkBounds(data []byte) error {
	// pending[i] is the number of values still expected at nesting level i.
	pending := []int{1}
	pos := 0

	for len(pending) > 0 {
		top := len(pending) - 1
		if pending[top] == 0 {
			pending = pending[:top]
			continue
		}
		pending[top]--

		if pos >= len(data) {
			return fmt.Errorf("%w: truncated at byte %d", ErrMalformedBody, pos)
		}
		b := data[pos]
		pos++

		var (
			skip  int // payload bytes following the header
			elems int // values contained by an array or map
			err   error
		)

		switch {
		case b <= 0x7f, b >= 0xe0, b == 0xc0, b == 0xc2, b == 0xc3:
		case b >= 0x80 && b <= 0x8f:
			elems = 2 * int(b&0x0f)
		case b >= 0x90 && b <= 0x9f:
			elems = int(b & 0x0f)
		case b >= 0xa0 && b <= 0xbf:
			skip = int(b & 0x1f)
		default:
			switch b {
			case 0xcc, 0xd0:
				skip = 1
			case 0xcd, 0xd1:
				skip = 2
			case 0xca, 0xce, 0xd2:
				skip = 4
			case 0xcb, 0xcf, 0xd3:
				skip = 8
			case 0xd4:
				skip = 2
			case 0xd5:
				skip = 3
			case 0xd6:
				skip = 5
			case 0xd7:
				skip = 9
			case 0xd8:
				skip = 17
			case 0xc4, 0xd9:
				skip, pos, err = readLen(data, pos, 1)
			case 0xc5, 0xda:
				skip, pos, err = readLen(data, pos, 2)
			case 0xc6, 0xdb:
				skip, pos, err = readLen(data, pos, 4)
			case 0xc7:
				skip, pos, err = readLen(data, pos, 1)
				skip++
			case 0xc8:
				skip, pos, err = readLen(data, pos, 2)
				skip++
			case 0xc9:
				skip, pos, err = readLen(data, pos, 4)
				skip++
			case 0xdc:
				elems, pos, err = readLen(data, pos, 2)
			case 0xdd:
				elems, pos, err = readLen(data, pos, 4)
			case 0xde:
				elems, pos, err = readLen(data, pos, 2)
				elems *= 2
			case 0xdf:
				elems, pos, err = readLen(data, pos, 4)
				elems *= 2
			default:
				return fmt.Errorf("%w: invalid byte 0x%02x at %d", ErrMalformedBody, b, pos-1)
			}
		}
		if err != nil {
			return err
		}

		if skip > len(data)-pos {
			return fmt.Errorf("%w: %d bytes declared at %d, %d left", ErrMalformedBody, skip, pos, len(data)-pos)
		}
		pos += skip

		if elems > 0 {
			if elems > len(data)-pos {
				return fmt.Errorf("%w: %d elements declared at %d, %d bytes left", ErrMalformedBody, elems, pos, len(data)-pos)
			}
			if len(pending) > maxNesting {
				return fmt.Errorf("%w: nested deeper than %d", ErrMalformedBody, maxNesting)
			}
			pending = append(pending, elems)
		}
	}

	return nil
}

// readLen reads a big-endian length of size bytes at pos.
func readLen(data []byte, pos, size int) (int, int, error) {
	if size > len(data)-pos {
		return 0, pos, fmt.Errorf("%w: truncated length at %d", ErrMalformedBody, pos)
	}
	var n uint64
	switch size {
	case 1:
		n = uint64(data[pos])
	case 2:
		n = uint64(binary.BigEndian.Uint16(data[pos:]))
	case 4:
		n = uint64(binary.BigEndian.Uint32(data[pos:]))
	}
	if n > uint64(len(data)) {
		return 0, pos, fmt.Errorf("%w: length %d exceeds body of %d bytes", ErrMalformedBody, n, len(data))
	}
	return int(n), pos + size, nil
}
