package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Rendition is one finished encode of a video.
type Rendition struct {
	Path        string `json:"path" validate:"required"`
	Width       int    `json:"width" validate:"gt=0"`
	Height      int    `json:"height" validate:"gt=0"`
	BitrateKbps int    `json:"bitrate_kbps" validate:"gte=0"`
	Filesize    int64  `json:"filesize" validate:"gte=0"`
}

// Renditions maps a quality to its finished output. Keys come from the closed quality table.
type Renditions map[Quality]Rendition

// Sorted returns the qualities present, lowest first.
func (r Renditions) Sorted() []Quality {
	out := make([]Quality, 0, len(r))
	for q := range r {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r Renditions) Labels() []string {
	qs := r.Sorted()
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Label()
	}
	return out
}

// Lowest is the smallest rendition, used as the default stream when no remux exists.
func (r Renditions) Lowest() (Quality, Rendition, bool) {
	qs := r.Sorted()
	if len(qs) == 0 {
		return 0, Rendition{}, false
	}
	return qs[0], r[qs[0]], true
}

func (r Renditions) Validate() error {
	for q, rend := range r {
		if !q.Valid() {
			return fmt.Errorf("renditions: unknown quality %d", int(q))
		}
		if err := validate.Struct(rend); err != nil {
			return fmt.Errorf("renditions[%s]: %w", q.Label(), err)
		}
	}
	return nil
}

func (r Renditions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// Scan rejects unknown fields and unknown qualities instead of trusting the column.
func (r *Renditions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Renditions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("renditions: unsupported column type %T", src)
	}
	parsed := Renditions{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return fmt.Errorf("renditions: %w", err)
	}
	if err := parsed.Validate(); err != nil {
		return err
	}
	*r = parsed
	return nil
}
