// go run ./cmd/mocklivetrack -p 8099 -interval=5s         (listens on localhost:8099)

// go run ./cmd/livetrackbot -url=http://localhost:8099/json4Others.php -dryrun

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

var fPort int
var fInterval time.Duration
var fLandAfter int
var fPilotNames string

func init() {
	flag.IntVar(&fPort, "p", 8099, "which port to listen on")
	flag.DurationVar(&fInterval, "interval", 5*time.Second,
		"how often each pilot gains a point")
	flag.IntVar(&fLandAfter, "land", 20, "send OK (and go quiet) after this many points")
	flag.StringVar(&fPilotNames, "pilots", "Han_Solo,C-3PO", "comma-sep pilot names")
}

type sample struct {
	CumDist     string  `json:"cumDist"`
	TakeOffDist string  `json:"takeOffDist"`
	FlightTime  string  `json:"flightTime"`
	AvgSpeed    string  `json:"AvgSpeed"`
	LegSpeed    string  `json:"LegSpeed"`
	LegDist     string  `json:"LegDist"`
	Lat         float64 `json:"Lat"`
	Lng         float64 `json:"Lng"`
	Alt         int     `json:"Alt"`
	Msg         string  `json:"Msg"`
	DateTime    string  `json:"DateTime"`
	UnixTime    int64   `json:"unixTime"`
	SpotID      int64   `json:"spotId"`
}

type track struct {
	samples  []sample
	lat, lng float64
}

var mu sync.Mutex
var tracks = map[string]*track{}

func advance() {
	mu.Lock()
	defer mu.Unlock()

	now := time.Now().UTC()
	for _, tr := range tracks {
		if len(tr.samples) > fLandAfter {
			continue // landed, tracker gone quiet
		}

		msg := "UNLIMITED-TRACK"
		if len(tr.samples) == fLandAfter {
			msg = "OK"
		}

		tr.lat += 0.01
		n := len(tr.samples)
		tr.samples = append(tr.samples, sample{
			CumDist:     fmt.Sprintf("%.1f", float64(n)*1.2),
			TakeOffDist: fmt.Sprintf("%.1f", float64(n)*0.9),
			FlightTime:  fmt.Sprintf("%dmn", n*5),
			AvgSpeed:    "32.5",
			LegSpeed:    "28.0",
			LegDist:     "1.2",
			Lat:         tr.lat,
			Lng:         tr.lng,
			Alt:         1200 + 10*n,
			Msg:         msg,
			DateTime:    now.Format("2006-01-02T15:04:05-0700"),
			UnixTime:    now.Unix() + int64(n), // stays strictly increasing even at sub-second intervals
			SpotID:      int64(1000 + n),
		})
	}
}

func snapshotHandler(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	defer mu.Unlock()

	out := map[string]map[string]interface{}{}
	for name, tr := range tracks {
		if len(tr.samples) == 0 {
			continue
		}
		pilot := map[string]interface{}{"Count": 0}
		for i, s := range tr.samples {
			pilot[strconv.Itoa(i)] = s
		}
		out[name] = pilot
	}

	b, err := json.Marshal(out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The real server serves utf-8-sig; keep the BOM so clients have to cope.
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("\xef\xbb\xbf"))
	w.Write(b)
}

func main() {
	flag.Parse()
	pilots := strings.Split(fPilotNames, ",")

	lat, lng := 46.2, 6.1
	for _, name := range pilots {
		tracks[name] = &track{lat: lat, lng: lng}
		lat += 0.5
	}

	go func() {
		for {
			advance()
			time.Sleep(fInterval)
		}
	}()

	http.HandleFunc("/json4Others.php", snapshotHandler)

	fmt.Printf("(launching mock livetrack on localhost:%d; %d pilots)\n", fPort, len(pilots))
	if err := http.ListenAndServe(fmt.Sprintf("localhost:%d", fPort), nil); err != nil {
		fmt.Printf("listen: %v\n", err)
	}
}
