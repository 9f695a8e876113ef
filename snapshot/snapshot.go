package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/skypies/geo"
)

// Report is one pilot's full reported history for the day: samples keyed by
// their string index, plus the declared Count.
type Report struct {
	Count  int
	Points map[string]Point
}

// Snapshot is one poll's payload, keyed by pilot display name.
type Snapshot map[string]Report

// The fields a sample must carry; pointers so we can tell absent from zero.
type pointRecord struct {
	CumDist     *string  `json:"cumDist"`
	TakeOffDist *string  `json:"takeOffDist"`
	FlightTime  *string  `json:"flightTime"`
	AvgSpeed    *string  `json:"AvgSpeed"`
	LegSpeed    *string  `json:"LegSpeed"`
	LegDist     *string  `json:"LegDist"`
	Lat         *float64 `json:"Lat"`
	Lng         *float64 `json:"Lng"`
	Alt         *int     `json:"Alt"`
	Msg         *string  `json:"Msg"`
	DateTime    *string  `json:"DateTime"`
	UnixTime    *int64   `json:"unixTime"`
	SpotID      *int64   `json:"spotId"`
}

func (rec pointRecord) toPoint() (Point, error) {
	missing := ""
	switch {
	case rec.CumDist == nil:
		missing = "cumDist"
	case rec.TakeOffDist == nil:
		missing = "takeOffDist"
	case rec.FlightTime == nil:
		missing = "flightTime"
	case rec.AvgSpeed == nil:
		missing = "AvgSpeed"
	case rec.LegSpeed == nil:
		missing = "LegSpeed"
	case rec.LegDist == nil:
		missing = "LegDist"
	case rec.Lat == nil:
		missing = "Lat"
	case rec.Lng == nil:
		missing = "Lng"
	case rec.Alt == nil:
		missing = "Alt"
	case rec.Msg == nil:
		missing = "Msg"
	case rec.DateTime == nil:
		missing = "DateTime"
	case rec.UnixTime == nil:
		missing = "unixTime"
	case rec.SpotID == nil:
		missing = "spotId"
	}
	if missing != "" {
		return Point{}, fmt.Errorf("missing field %q", missing)
	}

	return Point{
		CumDist:     *rec.CumDist,
		TakeOffDist: *rec.TakeOffDist,
		FlightTime:  *rec.FlightTime,
		AvgSpeed:    *rec.AvgSpeed,
		LegSpeed:    *rec.LegSpeed,
		LegDist:     *rec.LegDist,
		Position:    geo.Latlong{Lat: *rec.Lat, Long: *rec.Lng},
		Alt:         *rec.Alt,
		Msg:         *rec.Msg,
		DateTime:    *rec.DateTime,
		UnixTime:    *rec.UnixTime,
		SpotID:      *rec.SpotID,
	}, nil
}

// Decode parses a raw payload into typed Reports. It is a two step decode:
// first into generic string-keyed maps, then each sample into a Point, so
// the source's untyped object encoding stays out of the rest of the code.
func Decode(raw []byte) (Snapshot, error) {
	// The source serves utf-8-sig.
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	pilots := map[string]map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &pilots); err != nil {
		return nil, DecodeError{err}
	}

	s := Snapshot{}
	for name, samples := range pilots {
		r := Report{Count: -1, Points: map[string]Point{}}
		for key, val := range samples {
			if key == "Count" {
				if err := json.Unmarshal(val, &r.Count); err != nil {
					return nil, DecodeError{fmt.Errorf("%s: bad Count: %v", name, err)}
				}
				continue
			}

			rec := pointRecord{}
			if err := json.Unmarshal(val, &rec); err != nil {
				return nil, DecodeError{fmt.Errorf("%s[%s]: %v", name, key, err)}
			}
			p, err := rec.toPoint()
			if err != nil {
				return nil, DecodeError{fmt.Errorf("%s[%s]: %v", name, key, err)}
			}
			r.Points[key] = p
		}
		if r.Count < 0 {
			return nil, DecodeError{fmt.Errorf("%s: no Count", name)}
		}
		s[name] = r
	}

	return s, nil
}

// First returns the designated first sample. The source marks it by indexing
// it with the string form of Count, not index 0 or Count-1.
func (r Report) First() (Point, error) {
	p, exists := r.Points[strconv.Itoa(r.Count)]
	if !exists {
		return Point{}, fmt.Errorf("no sample at index %d", r.Count)
	}
	return p, nil
}

// After returns the samples strictly newer than the watermark, oldest first.
func (r Report) After(watermark int64) []Point {
	pts := []Point{}
	for _, p := range r.Points {
		if p.UnixTime > watermark {
			pts = append(pts, p)
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].UnixTime < pts[j].UnixTime })
	return pts
}
