// Package pubsub fans the engine's events out to a Cloud Pub/Sub topic, so
// other tools can follow the day's flying without talking to Telegram.
package pubsub

// https://cloud.google.com/pubsub/docs

import (
	"bytes"
	"context"
	"encoding/gob"
	"log"
	"os"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/ridgelift/livetrack/tracker"
)

var Log = log.New(os.Stdout, "", log.Ldate|log.Ltime)

type Publisher struct {
	topic *pubsub.Topic
}

func NewPublisher(ctx context.Context, project, topic string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, err
	}
	return &Publisher{topic: client.Topic(topic)}, nil
}

// Publish ships one gob-encoded bundle of events. Failures are logged and
// dropped; the event stream is advisory, Telegram is the system of record.
func (p *Publisher) Publish(events []tracker.Event) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(events); err != nil {
		Log.Printf("event encode: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := p.topic.Publish(ctx, &pubsub.Message{Data: buf.Bytes()})
	if _, err := res.Get(ctx); err != nil {
		Log.Printf("event publish: %v\n", err)
	}
}

// Unpack decodes one bundle back into events.
func Unpack(m *pubsub.Message) ([]tracker.Event, error) {
	events := []tracker.Event{}
	if err := gob.NewDecoder(bytes.NewBuffer(m.Data)).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}

// Subscribe attaches to the events topic, creating the subscription if it
// doesn't exist yet.
func Subscribe(ctx context.Context, project, topic, sub string) (*pubsub.Subscription, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, err
	}

	s := client.Subscription(sub)
	if exists, err := s.Exists(ctx); err != nil {
		return nil, err
	} else if !exists {
		s, err = client.CreateSubscription(ctx, sub,
			pubsub.SubscriptionConfig{Topic: client.Topic(topic)})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}
