// Package models provides the data model for inkleaf notebooks.
package models

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Point is a single sample of an ink stroke. It serializes as a compact
// [x, y, pressure] array with coordinates rounded to one decimal place.
type Point struct {
	X        float64
	Y        float64
	Pressure float64
}

// NewPoint builds a point with full pressure.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y, Pressure: 1.0}
}

// Distance returns the euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (p Point) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(round1(p.X)); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(round1(p.Y)); err != nil {
		return err
	}
	return enc.EncodeFloat64(round1(p.Pressure))
}

// DecodeMsgpack implements msgpack.CustomDecoder. Two-element arrays are
// accepted with pressure defaulting to 1.0.
func (p *Point) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 && n != 3 {
		return fmt.Errorf("point: expected 2 or 3 values, got %d", n)
	}
	if p.X, err = dec.DecodeFloat64(); err != nil {
		return err
	}
	if p.Y, err = dec.DecodeFloat64(); err != nil {
		return err
	}
	p.Pressure = 1.0
	if n == 3 {
		if p.Pressure, err = dec.DecodeFloat64(); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([]float64{round1(p.X), round1(p.Y), round1(p.Pressure)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	if len(vals) != 2 && len(vals) != 3 {
		return fmt.Errorf("point: expected 2 or 3 values, got %d", len(vals))
	}
	p.X = vals[0]
	p.Y = vals[1]
	p.Pressure = 1.0
	if len(vals) == 3 {
		p.Pressure = vals[2]
	}
	return nil
}
