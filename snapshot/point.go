// Package snapshot decodes the json4Others-style payload served by a
// livetrack server: one object per pilot, keyed by display name, each holding
// a string-indexed map of samples plus a "Count" entry naming the first one.
package snapshot

import (
	"fmt"
	"time"

	"github.com/skypies/geo"
)

// Point is one tracked sample for a pilot. Immutable once decoded.
// The distance/speed/duration fields are decimal-as-text, exactly as the
// source serves them; they only ever get echoed into messages.
type Point struct {
	CumDist     string
	TakeOffDist string
	FlightTime  string
	AvgSpeed    string
	LegSpeed    string
	LegDist     string
	Position    geo.Latlong
	Alt         int
	Msg         string
	DateTime    string
	UnixTime    int64
	SpotID      int64
}

// The source timestamps look like "2020-07-13T19:39:16+0200"; some trackers
// omit the offset.
const (
	dateFormat         = "2006-01-02T15:04:05-0700"
	dateFormatNoOffset = "2006-01-02T15:04:05"
	displayFormat      = "2006-01-02 15:04:05 UTC"
)

// FormatDate renders the sample's timestamp for messages. If the raw string
// matches neither source format, it is returned unchanged.
func (p Point) FormatDate() string {
	if t, err := time.Parse(dateFormat, p.DateTime); err == nil {
		return t.Format(displayFormat)
	}
	if t, err := time.Parse(dateFormatNoOffset, p.DateTime); err == nil {
		return t.Format(displayFormat)
	}
	return p.DateTime
}

// ItineraryURL is a driving itinerary to the point, for whoever picks the
// pilot up.
func (p Point) ItineraryURL() string {
	return fmt.Sprintf(
		"[Pick Me](https://www.google.com/maps/dir/?api=1&destination=%v,%v&travelmode=driving)",
		p.Position.Lat, p.Position.Long)
}

// HomeItineraryURL is a driving itinerary from the pilot's home to the point.
func (p Point) HomeItineraryURL(home geo.Latlong) string {
	return fmt.Sprintf(
		"[From Home](https://www.google.com/maps/dir/?api=1&origin=%v,%v&destination=%v,%v&travelmode=driving)",
		home.Lat, home.Long, p.Position.Lat, p.Position.Long)
}

func (p Point) String() string {
	return fmt.Sprintf("[%s] %s (%.5f,%.5f) alt:%d t:%d",
		p.Msg, p.DateTime, p.Position.Lat, p.Position.Long, p.Alt, p.UnixTime)
}
