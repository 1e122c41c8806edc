package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/abema/go-mp4"
)

type MoovPosition string

const (
	MoovUnknown MoovPosition = "unknown"
	MoovFront   MoovPosition = "front"
	MoovEnd     MoovPosition = "end"
)

const maxTopLevelBoxes = 64

var errStopWalk = errors.New("stop box walk")

// DetectMoovPosition walks the top-level ISO BMFF boxes and reports whether the
// moov box precedes mdat. Non-MP4 input yields MoovUnknown.
func DetectMoovPosition(path string) (MoovPosition, error) {
	f, err := os.Open(path)
	if err != nil {
		return MoovUnknown, err
	}
	defer f.Close()
	return detectMoov(f)
}

func detectMoov(r io.ReadSeeker) (MoovPosition, error) {
	pos := MoovUnknown
	seen := 0
	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (interface{}, error) {
		info := h.BoxInfo
		if !info.ExtendToEOF && info.Size < info.HeaderSize {
			return nil, fmt.Errorf("corrupt box %q at offset %d", info.Type.String(), info.Offset)
		}
		seen++
		switch {
		case seen == 1 && info.Type != mp4.BoxTypeFtyp():
			return nil, errStopWalk
		case info.Type == mp4.BoxTypeMoov():
			pos = MoovFront
			return nil, errStopWalk
		case info.Type == mp4.BoxTypeMdat():
			pos = MoovEnd
			return nil, errStopWalk
		case seen >= maxTopLevelBoxes:
			return nil, errStopWalk
		}
		// top-level only, children are never expanded
		return nil, nil
	})
	switch {
	case err == nil, errors.Is(err, errStopWalk):
		return pos, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return MoovUnknown, nil
	default:
		return MoovUnknown, err
	}
}
