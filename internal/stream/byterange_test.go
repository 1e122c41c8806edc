package stream

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 5120
	tests := []struct {
		name   string
		header string
		want   *ByteRange
		err    bool
	}{
		{name: "no header", header: ""},
		{name: "explicit", header: "bytes=0-1023", want: &ByteRange{0, 1023}},
		{name: "open ended", header: "bytes=1024-", want: &ByteRange{1024, 5119}},
		{name: "suffix", header: "bytes=-1024", want: &ByteRange{4096, 5119}},
		{name: "suffix longer than file", header: "bytes=-999999", want: &ByteRange{0, 5119}},
		{name: "end clamped", header: "bytes=5000-99999", want: &ByteRange{5000, 5119}},
		{name: "end beyond int64", header: "bytes=0-99999999999999999999", want: &ByteRange{0, 5119}},
		{name: "suffix beyond int64", header: "bytes=-99999999999999999999", want: &ByteRange{0, 5119}},
		{name: "start beyond int64", header: "bytes=99999999999999999999-", err: true},
		{name: "last byte", header: "bytes=5119-5119", want: &ByteRange{5119, 5119}},
		{name: "first of many", header: "bytes=0-9, 20-29", want: &ByteRange{0, 9}},
		{name: "upper case unit", header: "Bytes=10-19", want: &ByteRange{10, 19}},
		{name: "start past end of file", header: "bytes=999999-", err: true},
		{name: "start equals size", header: "bytes=5120-6000", err: true},
		{name: "start after end", header: "bytes=100-50", err: true},
		{name: "zero suffix", header: "bytes=-0", err: true},
		{name: "wrong unit", header: "items=0-10", err: true},
		{name: "garbage", header: "bytes=abc-def", err: true},
		{name: "no dash", header: "bytes=100", err: true},
		{name: "negative start", header: "bytes=--5", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, size)
			if tt.err {
				assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_EmptyObject(t *testing.T) {
	_, err := ParseRange("bytes=0-", 0)
	assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
	_, err = ParseRange("bytes=-10", 0)
	assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
}

func TestParseRange_Properties(t *testing.T) {
	sizes := []int64{1, 2, 17, 1000}
	for _, size := range sizes {
		for start := int64(0); start < size; start += 3 {
			for end := start; end < size; end += 5 {
				r, err := ParseRange("bytes="+itoa(start)+"-"+itoa(end), size)
				require.NoError(t, err)
				assert.Equal(t, end-start+1, r.Length())
			}
			_, err := ParseRange("bytes="+itoa(size+start)+"-", size)
			assert.ErrorIs(t, err, ErrRangeNotSatisfiable)
		}
		for n := int64(1); n < 2*size; n += 7 {
			r, err := ParseRange("bytes=-"+itoa(n), size)
			require.NoError(t, err)
			wantStart := size - n
			if wantStart < 0 {
				wantStart = 0
			}
			assert.Equal(t, wantStart, r.Start)
			assert.Equal(t, size-1, r.End)
		}
	}
}

func TestContentRangeHeaders(t *testing.T) {
	assert.Equal(t, "bytes 1024-5119/5120", ByteRange{1024, 5119}.ContentRange(5120))
	assert.Equal(t, "bytes */5120", UnsatisfiedRange(5120))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
