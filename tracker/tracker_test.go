// go test -v github.com/ridgelift/livetrack/tracker
package tracker

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/skypies/geo"

	"github.com/ridgelift/livetrack/snapshot"
)

// {{{ fakes

type fakeNotifier struct {
	sent       []string
	deleted    []MessageRef
	fail       bool
	failDelete bool
	nextID     int
}

func (n *fakeNotifier) Send(text string) (MessageRef, error) {
	if n.fail {
		return MessageRef{}, fmt.Errorf("timed out")
	}
	n.nextID++
	n.sent = append(n.sent, text)
	return MessageRef{ChatID: 1, MessageID: n.nextID}, nil
}

func (n *fakeNotifier) Delete(ref MessageRef) error {
	if n.failDelete {
		return fmt.Errorf("message to delete not found")
	}
	n.deleted = append(n.deleted, ref)
	return nil
}

type fakeStats struct {
	requests, errors, messages int
	flying                     int
	resets                     int
}

func (s *fakeStats) IncRequests()        { s.requests++ }
func (s *fakeStats) IncErrors()          { s.errors++ }
func (s *fakeStats) IncMessages()        { s.messages++ }
func (s *fakeStats) AddFlying(delta int) { s.flying += delta }
func (s *fakeStats) ResetFlying()        { s.flying = 0; s.resets++ }

type fakeFetcher struct {
	snap snapshot.Snapshot
	err  error
}

func (f *fakeFetcher) Fetch() (snapshot.Snapshot, error) { return f.snap, f.err }

type fakeSink struct {
	events []Event
}

func (s *fakeSink) Publish(events []Event) { s.events = append(s.events, events...) }

// }}}
// {{{ helpers

func pt(msg string, unixTime int64) snapshot.Point {
	return snapshot.Point{
		CumDist: "42.2", TakeOffDist: "12.4", FlightTime: "3h25mn",
		AvgSpeed: "24.2", LegSpeed: "0.0", LegDist: "0.3",
		Position: geo.Latlong{Lat: 46.2, Long: 6.1}, Alt: 1500, Msg: msg,
		DateTime: "2020-07-13T19:39:16+0200", UnixTime: unixTime,
		SpotID: unixTime,
	}
}

func report(count int, pts ...snapshot.Point) snapshot.Report {
	r := snapshot.Report{Count: count, Points: map[string]snapshot.Point{}}
	for i, p := range pts {
		r.Points[strconv.Itoa(i)] = p
	}
	return r
}

const testURL = "https://livetrack.gartemann.tech/json4Others.php"

func newTestTracker(f *fakeFetcher, n *fakeNotifier, s *fakeStats) *Tracker {
	return New(Config{SourceURL: testURL, Interval: time.Minute}, f, n, s)
}

// }}}

func TestClassify(t *testing.T) {
	expected := map[string]EventKind{
		"OK": Landed, "HELP": Alert, "MOVE": Alert, "CUSTOM": Alert,
		"START": Resumed, "OFF": Stopped,
		"UNLIMITED-TRACK": Ignored, "ok": Ignored, "": Ignored,
	}
	for tag, kind := range expected {
		if got := Classify(pt(tag, 1)); got != kind {
			t.Errorf("Classify(%q): expected %s, got %s", tag, kind, got)
		}
	}
}

func TestDisplayURL(t *testing.T) {
	p := Pilot{Name: "C-3PO"}
	if got := p.DisplayURL(testURL); got != "[Tracking](https://livetrack.gartemann.tech?hLg=C-3PO)" {
		t.Errorf("DisplayURL: got %q", got)
	}

	p = Pilot{Name: "Han_Solo"}
	if got := p.DisplayURL(testURL + "?jD=2"); got != "[Tracking](https://livetrack.gartemann.tech?jD=2&hLg=Han_Solo)" {
		t.Errorf("DisplayURL with query: got %q", got)
	}
}

func TestFirstContact(t *testing.T) {
	// First sighting: sample "1" (Count=1, unixTime 100) is the designated
	// first, so the OK at 200 is unseen and lands in the same cycle.
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	summary := tr.RunCycle(time.Now())
	if len(notifier.sent) != 2 {
		t.Fatalf("first cycle: expected 2 messages, got %d: %v", len(notifier.sent), notifier.sent)
	}
	if !strings.Contains(notifier.sent[0], "*Han_Solo* started tracking at") {
		t.Errorf("took-off message: got %q", notifier.sent[0])
	}
	if !strings.Contains(notifier.sent[1], "*Han_Solo* sent OK at") {
		t.Errorf("landed message: got %q", notifier.sent[1])
	}
	if !strings.Contains(notifier.sent[1], "Duration: 3h25mn") ||
		!strings.Contains(notifier.sent[1], "Distance ALL/TO: 42.2/12.4 km") ||
		!strings.Contains(notifier.sent[1], "[Tracking](") ||
		!strings.Contains(notifier.sent[1], "[Pick Me](") {
		t.Errorf("landed message missing details: got %q", notifier.sent[1])
	}
	if stats.requests != 1 || stats.messages != 2 || stats.flying != 0 {
		t.Errorf("stats: %+v", stats)
	}
	if summary.Sent != 2 || summary.Pilots != 1 || summary.NewPoints != 1 {
		t.Errorf("summary: %+v", summary)
	}
}

func TestWatermarkAdvance(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	tr.RunCycle(time.Now())

	// A repeat of the same snapshot produces nothing new
	if summary := tr.RunCycle(time.Now()); summary.Sent != 0 || summary.NewPoints != 0 {
		t.Errorf("repeat cycle: %+v", summary)
	}

	// One added OK sample yields exactly one landed message
	fetcher.snap = snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100), pt("OK", 300)),
	}
	before := len(notifier.sent)
	if summary := tr.RunCycle(time.Now()); summary.Sent != 1 {
		t.Errorf("added sample: expected 1 sent, got %+v", summary)
	}
	if len(notifier.sent) != before+1 || !strings.Contains(notifier.sent[before], "sent OK at") {
		t.Errorf("added sample: got %v", notifier.sent[before:])
	}

	// And the watermark has advanced past it
	if summary := tr.RunCycle(time.Now()); summary.Sent != 0 || summary.NewPoints != 0 {
		t.Errorf("post-advance cycle: %+v", summary)
	}
}

func TestIgnoredTags(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	tr.RunCycle(time.Now())
	if len(notifier.sent) != 1 { // took-off only
		t.Fatalf("expected 1 message, got %v", notifier.sent)
	}

	// Plain position updates move the watermark but say nothing
	fetcher.snap = snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100), pt("UNLIMITED-TRACK", 200)),
	}
	if summary := tr.RunCycle(time.Now()); summary.Sent != 0 || summary.NewPoints != 1 {
		t.Errorf("ignored point: %+v", summary)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("ignored point sent something: %v", notifier.sent)
	}
}

func TestAlertStopResume(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	tr.RunCycle(time.Now())
	if stats.flying != 1 {
		t.Fatalf("after take-off: flying=%d", stats.flying)
	}

	fetcher.snap = snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100), pt("HELP", 200)),
	}
	tr.RunCycle(time.Now())
	last := notifier.sent[len(notifier.sent)-1]
	if !strings.Contains(last, "*Rey* sent HELP!!!") || !strings.Contains(last, "[Tracking](") {
		t.Errorf("alert message: got %q", last)
	}
	if stats.flying != 1 { // alerts don't change the gauge
		t.Errorf("after alert: flying=%d", stats.flying)
	}

	fetcher.snap = snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100), pt("HELP", 200), pt("OFF", 300)),
	}
	tr.RunCycle(time.Now())
	last = notifier.sent[len(notifier.sent)-1]
	if !strings.Contains(last, "*Rey* turned the tracking off at") {
		t.Errorf("stop message: got %q", last)
	}
	if stats.flying != 0 {
		t.Errorf("after stop: flying=%d", stats.flying)
	}

	fetcher.snap = snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100), pt("HELP", 200), pt("OFF", 300),
			pt("START", 400)),
	}
	tr.RunCycle(time.Now())
	last = notifier.sent[len(notifier.sent)-1]
	if !strings.Contains(last, "*Rey* started tracking again at") {
		t.Errorf("resume message: got %q", last)
	}
	if stats.flying != 1 {
		t.Errorf("after resume: flying=%d", stats.flying)
	}
}

func TestFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("transport: timeout")}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	summary := tr.RunCycle(time.Now())
	if !summary.Err || stats.errors != 1 || stats.requests != 0 {
		t.Errorf("failed cycle: summary=%+v stats=%+v", summary, stats)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("failed cycle sent messages: %v", notifier.sent)
	}

	// Recovery: state was untouched, so the next good cycle starts fresh
	fetcher.err = nil
	fetcher.snap = snapshot.Snapshot{"Rey": report(0, pt("UNLIMITED-TRACK", 100))}
	if summary := tr.RunCycle(time.Now()); summary.Sent != 1 {
		t.Errorf("recovery cycle: %+v", summary)
	}
}

func TestSendFailure(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{fail: true}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	tr.RunCycle(time.Now())
	if stats.errors != 1 || stats.messages != 0 {
		t.Errorf("send failure: stats=%+v", stats)
	}

	// The pilot was still registered and the watermark still advances
	notifier.fail = false
	fetcher.snap = snapshot.Snapshot{
		"Rey": report(0, pt("UNLIMITED-TRACK", 100), pt("OK", 200)),
	}
	tr.RunCycle(time.Now())
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0], "sent OK at") {
		t.Errorf("post-failure cycle: %v", notifier.sent)
	}
}

func TestRollover(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	now := time.Now()
	tr.RunCycle(now)
	nSent := len(notifier.sent)
	if nSent != 2 {
		t.Fatalf("day 1: expected 2 messages, got %d", nSent)
	}

	// Two days later: table cleared, gauge zeroed, every message deleted,
	// and the same pilot reads as a fresh take-off.
	tr.RunCycle(now.Add(48 * time.Hour))
	if len(notifier.deleted) != nSent {
		t.Errorf("rollover: expected %d deletions, got %d", nSent, len(notifier.deleted))
	}
	if stats.resets != 1 {
		t.Errorf("rollover: expected 1 gauge reset, got %d", stats.resets)
	}
	if len(notifier.sent) != nSent+2 {
		t.Errorf("rollover: expected a fresh take-off, got %v", notifier.sent[nSent:])
	}
	if !strings.Contains(notifier.sent[nSent], "started tracking at") {
		t.Errorf("rollover: got %q", notifier.sent[nSent])
	}
}

func TestRolloverDeleteFailure(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{failDelete: true}
	stats := &fakeStats{}
	tr := newTestTracker(fetcher, notifier, stats)

	now := time.Now()
	tr.RunCycle(now)
	nSent := len(notifier.sent)
	if nSent != 2 {
		t.Fatalf("day 1: expected 2 messages, got %d", nSent)
	}

	// Every deletion fails; the rollover must still clear the day, reset
	// the gauge, and read the same pilot as a fresh take-off.
	tr.RunCycle(now.Add(48 * time.Hour))
	if stats.resets != 1 {
		t.Errorf("rollover: expected 1 gauge reset, got %d", stats.resets)
	}
	if len(notifier.sent) != nSent+2 {
		t.Errorf("rollover: expected a fresh take-off, got %v", notifier.sent[nSent:])
	}
	if !strings.Contains(notifier.sent[nSent], "started tracking at") {
		t.Errorf("rollover: got %q", notifier.sent[nSent])
	}

	// The failed handles were dropped, not retried: the next rollover only
	// ever sees the second day's messages.
	notifier.failDelete = false
	tr.RunCycle(now.Add(96 * time.Hour))
	if len(notifier.deleted) != 2 {
		t.Errorf("expected only the second day's 2 messages deleted, got %d",
			len(notifier.deleted))
	}
}

func TestHomeItinerary(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	notifier := &fakeNotifier{}
	tr := New(Config{
		SourceURL: testURL,
		Interval:  time.Minute,
		Homes:     map[string]geo.Latlong{"Han_Solo": geo.Latlong{Lat: 45.9, Long: 6.8}},
	}, fetcher, notifier, &fakeStats{})

	tr.RunCycle(time.Now())
	landed := notifier.sent[len(notifier.sent)-1]
	if !strings.Contains(landed, "[From Home](") || !strings.Contains(landed, "origin=45.9,6.8") {
		t.Errorf("home itinerary missing: got %q", landed)
	}
}

func TestEventSink(t *testing.T) {
	fetcher := &fakeFetcher{snap: snapshot.Snapshot{
		"Han_Solo": report(1, pt("OK", 200), pt("UNLIMITED-TRACK", 100)),
	}}
	sink := &fakeSink{}
	tr := newTestTracker(fetcher, &fakeNotifier{}, &fakeStats{})
	tr.SetEventSink(sink)

	tr.RunCycle(time.Now())
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	if sink.events[0].Kind != TookOff || sink.events[1].Kind != Landed {
		t.Errorf("event kinds: %s, %s", sink.events[0].Kind, sink.events[1].Kind)
	}
	if sink.events[1].Pilot != "Han_Solo" || sink.events[1].Point.UnixTime != 200 {
		t.Errorf("event payload: %+v", sink.events[1])
	}
}

// {{{ -------------------------={ E N D }=----------------------------------

// Local variables:
// folded-file: t
// end:

// }}}
