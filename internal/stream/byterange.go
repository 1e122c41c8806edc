package stream

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrRangeNotSatisfiable maps to 416 with Content-Range: bytes */size.
var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// ByteRange is an inclusive window into an object.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the 206 Content-Range header value.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// UnsatisfiedRange formats the 416 Content-Range header value.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange reads the first range of a Range header against an object of size bytes.
// An empty header returns nil, nil and means the whole object. Further ranges in a
// comma separated list are ignored. An END past the object is clamped to size-1.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, ErrRangeNotSatisfiable
	}
	spec := header[len(prefix):]
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, ErrRangeNotSatisfiable
	}
	startStr := strings.TrimSpace(spec[:dash])
	endStr := strings.TrimSpace(spec[dash+1:])

	if startStr == "" {
		// bytes=-N, the last N bytes
		n, err := parseOffset(endStr)
		if err != nil || n == 0 || size == 0 {
			return nil, ErrRangeNotSatisfiable
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: size - 1}, nil
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return nil, ErrRangeNotSatisfiable
	}
	end := size - 1
	if endStr != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return nil, ErrRangeNotSatisfiable
		}
	}
	if start >= size || start > end {
		return nil, ErrRangeNotSatisfiable
	}
	if end > size-1 {
		end = size - 1
	}
	return &ByteRange{Start: start, End: end}, nil
}

// parseOffset reads a decimal byte offset. Offsets beyond int64 saturate so that an END or a
// suffix length past any real object clamps instead of failing.
func parseOffset(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64, nil
	}
	return n, err
}
