package rle

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"math"
)

// ToString converts run lengths to the pycocotools compressed counts string.
// Each count (after the second, stored as the difference to the count two
// positions earlier) is written as a little endian sequence of 5 bit groups,
// bit 0x20 flags a continuation and each group is offset by 48 to keep the
// output printable.
func ToString(counts []uint32) []byte {

	s := make([]byte, 0, len(counts)*2)

	for i := range counts {
		x := int64(counts[i])

		if i > 2 {
			x -= int64(counts[i-2])
		}

		more := true

		for more {
			c := byte(x & 0x1f)
			x >>= 5

			if c&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}

			if more {
				c |= 0x20
			}

			s = append(s, c+48)
		}
	}

	return s
}

// FromString parses a pycocotools compressed counts string
func FromString(s []byte) ([]uint32, error) {

	counts := make([]uint32, 0, len(s)/2+1)
	p := 0

	for p < len(s) {
		var x int64
		k := 0
		more := true

		for more {
			if p >= len(s) {
				return nil, fmt.Errorf("%w: truncated count at byte %d", ErrCorruptCounts, p)
			}

			c := int64(s[p]) - 48

			if c < 0 || c > 0x3f || k > 12 {
				return nil, fmt.Errorf("%w: invalid byte %q at %d", ErrCorruptCounts, s[p], p)
			}

			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++

			if !more && c&0x10 != 0 {
				x |= int64(-1) << (5 * k)
			}
		}

		if n := len(counts); n > 2 {
			x += int64(counts[n-2])
		}

		if x < 0 || x > math.MaxUint32 {
			return nil, fmt.Errorf("%w: count %d out of range", ErrCorruptCounts, x)
		}

		counts = append(counts, uint32(x))
	}

	return counts, nil
}

// EncodeCompact returns the transmittable token for a mask: the compressed
// counts string, zlib compressed at best compression then base64 encoded
func EncodeCompact(m Mask) (string, error) {

	var buf bytes.Buffer

	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)

	if err != nil {
		return "", fmt.Errorf("error creating zlib writer: %w", err)
	}

	if _, err := zw.Write(ToString(Encode(m).Counts)); err != nil {
		return "", fmt.Errorf("error compressing counts: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("error compressing counts: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeCompact reverses EncodeCompact.  The token does not carry the mask
// size so it must be supplied, as it is in prediction files
func DecodeCompact(token string, height, width int) (Mask, error) {

	raw, err := base64.StdEncoding.DecodeString(token)

	if err != nil {
		return Mask{}, fmt.Errorf("error decoding base64 mask: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(raw))

	if err != nil {
		return Mask{}, fmt.Errorf("error opening zlib mask: %w", err)
	}

	defer zr.Close()

	str, err := io.ReadAll(zr)

	if err != nil {
		return Mask{}, fmt.Errorf("error decompressing mask: %w", err)
	}

	counts, err := FromString(str)

	if err != nil {
		return Mask{}, err
	}

	return Decode(RLE{Size: [2]int{height, width}, Counts: counts})
}
