// The livetrackbot program polls a livetrack server for paragliding pilot
// positions, and posts take-offs, landings and help signals to a Telegram
// channel. Each new UTC day it forgets every pilot and deletes the previous
// day's messages. New events can optionally be fanned out to a Google Cloud
// Pubsub topic, for other tools to follow (see cmd/tail).

// The Telegram bot token is read from the TELEGRAM_TOKEN environment
// variable; that is the only fatal configuration item.

// Run it locally against a mock server, with no Telegram and no pubsub:
//   $ go run ./cmd/mocklivetrack -p 8099
//   $ go run ./cmd/livetrackbot -url=http://localhost:8099/json4Others.php -dryrun

// For a test against the real server, add ?jD=X to the URL, where X is the
// number of days in the past.

// Handy endpoints, on the metrics port:
//   $ curl -s localhost:9091/metrics     [prometheus exposition]
//   $ curl -s localhost:9091/status
//   $ curl -s localhost:9091/stack

package main

// {{{ import()

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/skypies/geo"
	"github.com/skypies/util/metrics"

	mymetrics "github.com/ridgelift/livetrack/metrics"
	"github.com/ridgelift/livetrack/notify"
	"github.com/ridgelift/livetrack/pubsub"
	"github.com/ridgelift/livetrack/snapshot"
	"github.com/ridgelift/livetrack/tracker"
)

// }}}
// {{{ var()

var (
	// Command line flags
	fChannel      string
	fSourceURL    string
	fPort         int
	fInterval     time.Duration
	fTimeout      time.Duration
	fProjectName  string
	fPubsubTopic  string
	fHomes        string
	fDryRun       bool
	fVerbose      int

	Log *log.Logger
)

// }}}

// {{{ init

func init() {
	Log = log.New(os.Stdout, "", log.Ldate|log.Ltime)

	flag.StringVar(&fChannel, "channel", "",
		"Telegram channel to post to (@name, or a numeric chat id)")
	flag.StringVar(&fSourceURL, "url", "https://livetrack.gartemann.tech/json4Others.php",
		"URL serving the JSON containing the points of the pilots")
	flag.IntVar(&fPort, "port", 9091, "port for the metrics/status endpoints")
	flag.DurationVar(&fInterval, "interval", 5*time.Minute,
		"poll interval (the livetrack refreshes every 5 minutes)")
	flag.DurationVar(&fTimeout, "timeout", 5*time.Second,
		"timeout for fetches and sends")
	flag.StringVar(&fProjectName, "project", "ridgelift",
		"Name of the Google cloud project hosting the pubsub")
	flag.StringVar(&fPubsubTopic, "topic", "",
		"Name of the pubsub topic to post events to (empty for no fanout)")
	flag.StringVar(&fHomes, "homes", "",
		"per-pilot home locations, e.g. 'Han_Solo=46.21:6.14,Leia=45.93:6.87'")
	flag.BoolVar(&fDryRun, "dryrun", false, "log messages instead of sending to Telegram")
	flag.IntVar(&fVerbose, "v", 0, "how verbose to get")
	flag.Parse()

	http.HandleFunc("/status", statusHandler)
	http.HandleFunc("/stack", stackTraceHandler)
	http.HandleFunc("/reset", resetHandler)
	http.HandleFunc("/healthz", healthCheckHandler)
	http.Handle("/metrics", mymetrics.Handler())

	addSIGINTHandler()
}

// }}}
// {{{ parseHomes

// -homes "Han_Solo=46.21:6.14,Leia=45.93:6.87"
func parseHomes(s string) map[string]geo.Latlong {
	homes := map[string]geo.Latlong{}
	if s == "" {
		return homes
	}

	for _, pair := range strings.Split(s, ",") {
		nameLoc := strings.SplitN(pair, "=", 2)
		if len(nameLoc) != 2 {
			Log.Fatalf("bad -homes entry %q", pair)
		}
		latLong := strings.SplitN(nameLoc[1], ":", 2)
		if len(latLong) != 2 {
			Log.Fatalf("bad -homes location %q", nameLoc[1])
		}
		lat, err := strconv.ParseFloat(latLong[0], 64)
		if err != nil {
			Log.Fatalf("bad -homes latitude %q: %v", latLong[0], err)
		}
		long, err := strconv.ParseFloat(latLong[1], 64)
		if err != nil {
			Log.Fatalf("bad -homes longitude %q: %v", latLong[1], err)
		}
		homes[nameLoc[0]] = geo.Latlong{Lat: lat, Long: long}
	}
	return homes
}

// }}}

// {{{ {status,stackTrace,reset,healthCheck}Handler

func getStackTraceBytes() []byte {
	bytes := make([]byte, 256000)
	n := runtime.Stack(bytes, true)
	return bytes[:n]
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	vitalsRequestChan <- VitalsRequest{Name: "_output"}
	vr := <-vitalsResponseChan
	w.Write([]byte(fmt.Sprintf("OK\n%s", vr.Str)))
}

func stackTraceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write(getStackTraceBytes())
}

func resetHandler(w http.ResponseWriter, r *http.Request) {
	vitalsRequestChan <- VitalsRequest{Name: "_reset"}
	w.Write([]byte(fmt.Sprintf("OK\n")))
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

// }}}
// {{{ weAreDone

var done = make(chan struct{}) // Gets closed when everything is done
func weAreDone() bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func addSIGINTHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func(sig <-chan os.Signal) {
		<-sig
		Log.Printf("(SIGINT received)\n")
		close(done)
	}(c)
}

// }}}

// {{{ trackVitals

// These two channels are accessible from all goroutines
var vitalsRequestChan = make(chan VitalsRequest, 40)
var vitalsResponseChan = make(chan VitalsResponse, 5) // Only used for stats output

type VitalsRequest struct {
	Name          string // _blah
	I, J, K, L, M int64
}

type VitalsResponse struct {
	Str string
}

func memStats() string {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf("go:% 4d; heap:% 13d, % 13d; stack:% 13d",
		runtime.NumGoroutine(), ms.HeapObjects, ms.HeapAlloc, ms.StackInuse)
}

func trackVitals() {
	startupTime := time.Now().Round(time.Second)
	counters := map[string]int64{}
	m := metrics.NewMetrics()

	vitals2str := func() string {
		return fmt.Sprintf(
			"* %d cycles (%d errors; %d messages sent; %d new points)\n"+
				"* Tracking %d pilots\n"+
				"* Uptime: %s (started %s)\n"+
				"\n"+
				"* Metrics:-\n%s\n",
			counters["nCycles"], counters["nErrors"], counters["nSent"], counters["nPoints"],
			counters["nPilots"],
			time.Second*time.Duration(int(time.Since(startupTime).Seconds())), startupTime,
			m.String())
	}

	tLastDump := time.Now()

	for {
		if weAreDone() {
			break
		}

		if time.Since(tLastDump) > 10*time.Minute {
			Log.Printf("vital dump:-\n%s", vitals2str())
			Log.Printf("* memstats  %s\n", memStats())
			tLastDump = time.Now()
		}

		select {
		case <-time.After(time.Second):
			// break

		case req := <-vitalsRequestChan:
			if req.Name == "_reset" {
				counters = map[string]int64{}
				m = metrics.NewMetrics()

			} else if req.Name == "_cycle" {
				counters["nCycles"]++
				counters["nErrors"] += req.I
				counters["nSent"] += req.J
				counters["nPilots"] = req.K
				counters["nPoints"] += req.L
				m.RecordValue("FetchMillis", req.M)

			} else if req.Name == "_output" {
				vitalsResponseChan <- VitalsResponse{Str: vitals2str()}
			}
		}
	}

	Log.Printf(" -- trackVitals clean exit\n")
}

// }}}
// {{{ liveFetcher / dryRunNotifier

type liveFetcher struct {
	client *http.Client
	url    string
}

func (f liveFetcher) Fetch() (snapshot.Snapshot, error) {
	return snapshot.Fetch(f.client, f.url)
}

type dryRunNotifier struct{}

func (dryRunNotifier) Send(text string) (tracker.MessageRef, error) {
	Log.Printf("-- would send:\n%s\n", text)
	return tracker.MessageRef{}, nil
}

func (dryRunNotifier) Delete(ref tracker.MessageRef) error { return nil }

// }}}

// {{{ main

func main() {
	Log.Printf("(main starting)\n")
	Log.Printf("(channel: %q, url: %s)\n", fChannel, fSourceURL)

	var notifier tracker.Notifier
	if fDryRun {
		Log.Printf("(no telegram, in dry-run mode)\n")
		notifier = dryRunNotifier{}
	} else {
		n, err := notify.New(os.Getenv("TELEGRAM_TOKEN"), fChannel, fTimeout)
		if err != nil {
			Log.Fatal(err)
		}
		notifier = n
	}

	t := tracker.New(tracker.Config{
		SourceURL: fSourceURL,
		Interval:  fInterval,
		Homes:     parseHomes(fHomes),
		Verbose:   fVerbose,
	}, liveFetcher{client: &http.Client{Timeout: fTimeout}, url: fSourceURL},
		notifier, mymetrics.New())

	if fPubsubTopic == "" {
		Log.Printf("(no topic defined, not publishing events)\n")
	} else {
		pub, err := pubsub.NewPublisher(context.Background(), fProjectName, fPubsubTopic)
		if err != nil {
			Log.Fatal(err)
		}
		t.SetEventSink(pub)
	}

	t.OnCycle = func(s tracker.CycleSummary) {
		nErrs := int64(0)
		if s.Err {
			nErrs = 1
		}
		vitalsRequestChan <- VitalsRequest{Name: "_cycle",
			I: nErrs, J: int64(s.Sent), K: int64(s.Pilots), L: int64(s.NewPoints),
			M: s.FetchMillis}
	}

	go t.Run(done)

	// Manage vital statistics in a thread safe way
	go trackVitals()

	go func() { Log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", fPort), nil)) }()

	// Block until done channel lights up
	<-done
	time.Sleep(time.Second) // Give the polling loop a chance to unblock and exit
	Log.Printf("(-- main clean exit)\n")
}

// }}}

// {{{ -------------------------={ E N D }=----------------------------------

// Local variables:
// folded-file: t
// end:

// }}}
