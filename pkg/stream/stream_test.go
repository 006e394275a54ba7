// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ledgerline/settler/pkg/config"

	"gocloud.dev/pubsub"
)

func TestStream(t *testing.T) {
	topicURL := "mem://settler"
	ctx := context.Background()

	topic, err := Topic(ctx, topicURL)
	if err != nil {
		t.Fatal(err)
	}
	defer topic.Shutdown(ctx)

	sub, err := Subscription(ctx, topicURL)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Shutdown(ctx)

	// quick send and receive
	send(ctx, topic, "hello, world")
	if msg, err := receive(ctx, sub); err == nil {
		if msg != "hello, world" {
			t.Errorf("got %q", msg)
		}
	} else {
		t.Fatal(err)
	}
}

func send(ctx context.Context, t *pubsub.Topic, body string) *pubsub.Message {
	msg := &pubsub.Message{
		Body:     []byte(body),
		Metadata: make(map[string]string),
	}
	t.Send(ctx, msg)
	return msg
}

func receive(ctx context.Context, t *pubsub.Subscription) (string, error) {
	msg, err := t.Receive(ctx)
	if err != nil {
		return "", err
	}
	return string(msg.Body), nil
}

func TestPublisher(t *testing.T) {
	topicURL := "mem://settler-audit"
	ctx := context.Background()

	topic, err := OpenTopic(ctx, &config.Stream{InMem: &config.InMemStream{URL: topicURL}})
	if err != nil {
		t.Fatal(err)
	}
	defer topic.Shutdown(ctx)

	sub, err := Subscription(ctx, topicURL)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Shutdown(ctx)

	pub := NewPublisher(topic)
	err = pub.Publish(ctx, Event{
		Type:   "lock-force-released",
		Fields: map[string]string{"name": "batch-runner"},
	})
	if err != nil {
		t.Fatal(err)
	}

	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "lock-force-released" || event.Fields["name"] != "batch-runner" {
		t.Errorf("got %#v", event)
	}
	if event.At.IsZero() {
		t.Error("timestamp should be stamped at publish")
	}
}

func TestPublisher__nilTopicDrops(t *testing.T) {
	var pub *Publisher
	if err := pub.Publish(context.Background(), Event{Type: "noop"}); err != nil {
		t.Fatal(err)
	}
	if err := NewPublisher(nil).Publish(context.Background(), Event{Type: "noop"}); err != nil {
		t.Fatal(err)
	}
}

func TestOpenTopic__unconfigured(t *testing.T) {
	topic, err := OpenTopic(context.Background(), nil)
	if err != nil || topic != nil {
		t.Errorf("topic=%v err=%v", topic, err)
	}
	if _, err := OpenTopic(context.Background(), &config.Stream{}); err == nil {
		t.Error("expected error")
	}
}
