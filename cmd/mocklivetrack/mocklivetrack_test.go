package main

import "testing"

func TestAdvanceTimestampsIncrease(t *testing.T) {
	tracks = map[string]*track{"Rey": {lat: 46.2, lng: 6.1}}

	// Back to back, faster than the wall clock can tick over a second.
	for i := 0; i < 5; i++ {
		advance()
	}

	tr := tracks["Rey"]
	if len(tr.samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(tr.samples))
	}
	for i := 1; i < len(tr.samples); i++ {
		if tr.samples[i].UnixTime <= tr.samples[i-1].UnixTime {
			t.Errorf("sample %d: unixTime %d not after %d",
				i, tr.samples[i].UnixTime, tr.samples[i-1].UnixTime)
		}
	}
}
