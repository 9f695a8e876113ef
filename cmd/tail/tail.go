package main

// go run ./cmd/tail -project=my-project -topic=livetrack-events

// Follows the bot's event topic and prints each event as it lands. Handy for
// checking what the bot is seeing without joining the Telegram channel.

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"cloud.google.com/go/pubsub"

	mypubsub "github.com/ridgelift/livetrack/pubsub"
)

var Log *log.Logger

var fProjectName string
var fTopic string
var fSubscription string

func init() {
	flag.StringVar(&fProjectName, "project", "ridgelift",
		"Name of the Google cloud project hosting the pubsub")
	flag.StringVar(&fTopic, "topic", "livetrack-events",
		"Name of the pubsub topic the bot publishes to")
	flag.StringVar(&fSubscription, "sub", "tail",
		"Name of the pubsub subscription on the events topic")
	flag.Parse()

	Log = log.New(os.Stdout, "", log.Ldate|log.Ltime)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func(sig <-chan os.Signal) {
		<-sig
		Log.Printf("(SIGINT received)\n")
		cancel() // terminates the call to sub.Receive()
	}(c)

	sub, err := mypubsub.Subscribe(ctx, fProjectName, fTopic, fSubscription)
	if err != nil {
		Log.Fatal(err)
	}

	Log.Printf("(tail starting; %s:%s)\n", fTopic, fSubscription)

	callback := func(ctx context.Context, m *pubsub.Message) {
		m.Ack()
		events, err := mypubsub.Unpack(m)
		if err != nil {
			Log.Printf("unpack: %v\n", err)
			return
		}
		for _, ev := range events {
			Log.Printf("[%s] %s: %s\n", ev.Kind, ev.Pilot, ev.Point)
		}
	}

	if err := sub.Receive(ctx, callback); err != nil {
		Log.Printf("sub.Receive() err:%v", err)
	}

	Log.Printf(" -- tail clean exit\n")
}
