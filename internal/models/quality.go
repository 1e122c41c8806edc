package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Quality is a rendition target identified by its output height.
type Quality int

const (
	Quality360P  Quality = 360
	Quality480P  Quality = 480
	Quality720P  Quality = 720
	Quality1080P Quality = 1080
)

// QualityProfile holds the encoder targets for one quality.
type QualityProfile struct {
	Height      int
	MaxrateKbps int
	BufsizeKbps int
	AudioKbps   int
}

var qualityTable = map[Quality]QualityProfile{
	Quality360P:  {Height: 360, MaxrateKbps: 800, BufsizeKbps: 1200, AudioKbps: 96},
	Quality480P:  {Height: 480, MaxrateKbps: 1400, BufsizeKbps: 2100, AudioKbps: 128},
	Quality720P:  {Height: 720, MaxrateKbps: 2500, BufsizeKbps: 3750, AudioKbps: 128},
	Quality1080P: {Height: 1080, MaxrateKbps: 5000, BufsizeKbps: 7500, AudioKbps: 192},
}

// ParseQuality accepts "720" and "720p".
func ParseQuality(label string) (Quality, error) {
	label = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(label)), "p")
	h, err := strconv.Atoi(label)
	if err != nil {
		return 0, fmt.Errorf("invalid quality %q", label)
	}
	q := Quality(h)
	if !q.Valid() {
		return 0, fmt.Errorf("unsupported quality %q", label)
	}
	return q, nil
}

func (q Quality) Valid() bool {
	_, ok := qualityTable[q]
	return ok
}

func (q Quality) Profile() QualityProfile {
	return qualityTable[q]
}

// Label is the key used in the renditions map and the ?quality= parameter.
func (q Quality) Label() string {
	return strconv.Itoa(int(q))
}

func (q Quality) String() string {
	return q.Label() + "p"
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.Label()), nil
}

func (q *Quality) UnmarshalText(b []byte) error {
	parsed, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// Width keeps the source aspect ratio and rounds to an even number, as x264 requires.
func (q Quality) Width(srcWidth, srcHeight int) int {
	h := q.Profile().Height
	if srcWidth <= 0 || srcHeight <= 0 {
		return evenRound(float64(h) * 16 / 9)
	}
	return evenRound(float64(h) * float64(srcWidth) / float64(srcHeight))
}

func evenRound(v float64) int {
	return int(v/2+0.5) * 2
}

// QualitiesFromHeights converts configured heights into a sorted, de-duplicated ladder.
func QualitiesFromHeights(heights []int) ([]Quality, error) {
	seen := make(map[Quality]struct{}, len(heights))
	out := make([]Quality, 0, len(heights))
	for _, h := range heights {
		q := Quality(h)
		if !q.Valid() {
			return nil, fmt.Errorf("unsupported quality %d", h)
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// SelectQualities drops targets taller than the source so nothing is upscaled.
// An unknown source height keeps the whole ladder. A source shorter than every
// target still gets the lowest rung, otherwise the video could never become ready.
func SelectQualities(ladder []Quality, sourceHeight int) []Quality {
	if sourceHeight <= 0 || len(ladder) == 0 {
		return ladder
	}
	out := make([]Quality, 0, len(ladder))
	for _, q := range ladder {
		if q.Profile().Height <= sourceHeight {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		out = append(out, ladder[0])
	}
	return out
}
