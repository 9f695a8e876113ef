// Package tracker is the polling state machine: each cycle it diffs the
// snapshot against per-pilot watermarks, turns new points into events, and
// sends one message per event. Each new UTC day the whole session is
// forgotten and the previous day's messages are deleted.
package tracker

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skypies/geo"

	"github.com/ridgelift/livetrack/snapshot"
)

var Log = log.New(os.Stdout, "", log.Ldate|log.Ltime)

// Notifier delivers messages to the channel. Send returns a handle so the
// day's messages can be deleted at rollover.
type Notifier interface {
	Send(text string) (MessageRef, error)
	Delete(ref MessageRef) error
}

// MessageRef identifies one sent message for later deletion.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Fetcher retrieves one decoded snapshot per cycle.
type Fetcher interface {
	Fetch() (snapshot.Snapshot, error)
}

// Stats is the engine's metrics side-channel. The engine is the only writer;
// the exposition endpoint reads from another goroutine, so implementations
// must be safe for that.
type Stats interface {
	IncRequests()
	IncErrors()
	IncMessages()
	AddFlying(delta int)
	ResetFlying()
}

// EventSink receives every emitted event; used for the pubsub fanout.
type EventSink interface {
	Publish(events []Event)
}

type Config struct {
	SourceURL string
	Interval  time.Duration
	Homes     map[string]geo.Latlong
	Verbose   int
}

// CycleSummary describes one completed poll, for vital stats.
type CycleSummary struct {
	Err         bool
	Pilots      int
	NewPoints   int
	Sent        int
	FetchMillis int64
}

type Tracker struct {
	cfg      Config
	fetcher  Fetcher
	notifier Notifier
	stats    Stats
	sink     EventSink

	pilots   map[string]*Pilot
	messages []MessageRef
	today    time.Time // UTC date of the current session

	// OnCycle, if set, is told about each completed cycle.
	OnCycle func(CycleSummary)
}

func New(cfg Config, f Fetcher, n Notifier, s Stats) *Tracker {
	return &Tracker{
		cfg:      cfg,
		fetcher:  f,
		notifier: n,
		stats:    s,
		pilots:   map[string]*Pilot{},
		today:    utcDate(time.Now()),
	}
}

func (t *Tracker) SetEventSink(sink EventSink) { t.sink = sink }

func utcDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rollover clears yesterday's session: every pilot forgotten, every message
// deleted (best effort), gauge zeroed.
func (t *Tracker) rollover(now time.Time) {
	if !utcDate(now).After(t.today) {
		return
	}

	Log.Printf("(rollover: dropping %d pilots, deleting %d messages)\n",
		len(t.pilots), len(t.messages))

	t.pilots = map[string]*Pilot{}
	for _, ref := range t.messages {
		if err := t.notifier.Delete(ref); err != nil {
			Log.Printf("delete message %d: %v\n", ref.MessageID, err)
		}
	}
	t.messages = nil
	t.stats.ResetFlying()
	t.today = utcDate(now)
}

// emit sends one event's message. Send failures are logged and counted; the
// event still happened, so it is returned for the sink either way.
func (t *Tracker) emit(ev Event) Event {
	ref, err := t.notifier.Send(ev.Text)
	if err != nil {
		Log.Printf("send to channel: %v\n", err)
		t.stats.IncErrors()
		return ev
	}
	t.messages = append(t.messages, ref)
	t.stats.IncMessages()
	return ev
}

// advancePilot processes one pilot's report: first contact becomes a took-off
// event, then every sample past the watermark gets classified in time order.
// The watermark only ever moves forward.
func (t *Tracker) advancePilot(name string, report snapshot.Report) ([]Event, int) {
	events := []Event{}

	pilot, exists := t.pilots[name]
	if !exists {
		first, err := report.First()
		if err != nil {
			Log.Printf("%s: %v\n", name, err)
			t.stats.IncErrors()
			return events, 0
		}

		pilot = &Pilot{Name: name, LastPoint: first, Home: t.cfg.Homes[name]}
		t.pilots[name] = pilot

		Log.Printf("%s took off: %s\n", name, first)
		events = append(events, t.emit(Event{
			Kind:  TookOff,
			Pilot: name,
			Point: first,
			Text:  fmt.Sprintf("*%s* started tracking at %s", name, first.FormatDate()),
		}))
		t.stats.AddFlying(1)
	}

	unseen := report.After(pilot.LastPoint.UnixTime)
	for _, point := range unseen {
		switch Classify(point) {
		case Landed:
			Log.Printf("%s landed: %s\n", name, point)
			text := fmt.Sprintf(
				"*%s* sent OK at %s\nDuration: %s\nDistance ALL/TO: %s/%s km\n%s\n%s",
				name, point.FormatDate(), point.FlightTime, point.CumDist, point.TakeOffDist,
				pilot.DisplayURL(t.cfg.SourceURL), point.ItineraryURL())
			if !pilot.Home.IsNil() {
				text += "\n" + point.HomeItineraryURL(pilot.Home)
			}
			events = append(events, t.emit(Event{Kind: Landed, Pilot: name, Point: point, Text: text}))
			t.stats.AddFlying(-1)

		case Alert:
			Log.Printf("%s sent %s: %s\n", name, point.Msg, point)
			events = append(events, t.emit(Event{
				Kind:  Alert,
				Pilot: name,
				Point: point,
				Text: fmt.Sprintf("*%s* sent %s!!!\n%s",
					name, point.Msg, pilot.DisplayURL(t.cfg.SourceURL)),
			}))

		case Resumed:
			Log.Printf("%s took off again: %s\n", name, point)
			events = append(events, t.emit(Event{
				Kind:  Resumed,
				Pilot: name,
				Point: point,
				Text:  fmt.Sprintf("*%s* started tracking again at %s", name, point.FormatDate()),
			}))
			t.stats.AddFlying(1)

		case Stopped:
			Log.Printf("%s turned the tracking off: %s\n", name, point)
			events = append(events, t.emit(Event{
				Kind:  Stopped,
				Pilot: name,
				Point: point,
				Text:  fmt.Sprintf("*%s* turned the tracking off at %s", name, point.FormatDate()),
			}))
			t.stats.AddFlying(-1)

		default:
			if t.cfg.Verbose > 0 {
				Log.Printf("%s: new point %s\n", name, point)
			}
		}
	}

	if len(unseen) > 0 {
		pilot.LastPoint = unseen[len(unseen)-1]
	}

	return events, len(unseen)
}

// RunCycle executes one poll. A fetch or decode failure skips the cycle;
// engine state is only mutated on success.
func (t *Tracker) RunCycle(now time.Time) CycleSummary {
	t.rollover(now)

	tStart := time.Now()
	snap, err := t.fetcher.Fetch()
	summary := CycleSummary{FetchMillis: time.Since(tStart).Nanoseconds() / 1000000}

	if err != nil {
		Log.Printf("fetch: %v\n", err)
		t.stats.IncErrors()
		summary.Err = true
		return summary
	}
	t.stats.IncRequests()

	events := []Event{}
	for name, report := range snap {
		evs, nNew := t.advancePilot(name, report)
		events = append(events, evs...)
		summary.NewPoints += nNew
	}

	if t.sink != nil && len(events) > 0 {
		t.sink.Publish(events)
	}

	summary.Pilots = len(t.pilots)
	summary.Sent = len(events)
	return summary
}

// Run polls until done closes. The loop is the sole owner of the pilot table
// and the message list; no locking needed.
func (t *Tracker) Run(done <-chan struct{}) {
	Log.Printf("(tracker starting; polling every %s)\n", t.cfg.Interval)

	for {
		summary := t.RunCycle(time.Now())
		if t.OnCycle != nil {
			t.OnCycle(summary)
		}

		select {
		case <-done:
			Log.Printf(" -- tracker clean exit\n")
			return
		case <-time.After(t.cfg.Interval):
		}
	}
}
