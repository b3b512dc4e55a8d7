package kafka_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/kafka"
	"github.com/pkg/errors"
)

func newFetcher(t *testing.T) (*kafka.Fetcher, *mocks.Consumer) {
	consumer := mocks.NewConsumer(t, nil)
	consumer.SetTopicMetadata(map[string][]int32{
		"events": {0, 1},
		"empty":  {0},
	})
	f := kafka.NewFetcher()
	f.IdleTimeout = 50 * time.Millisecond
	f.Use(consumer)
	return f, consumer
}

func event(i int) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Value: []byte(fmt.Sprintf(`{"id": %d, "kind": "click", "at": "2024-01-0%dT00:00:00Z"}`, i, i+1)),
	}
}

func TestFetch(t *testing.T) {
	f, consumer := newFetcher(t)
	p0 := consumer.ExpectConsumePartition("events", 0, sarama.OffsetOldest)
	p1 := consumer.ExpectConsumePartition("events", 1, sarama.OffsetOldest)
	for i := 0; i < 3; i++ {
		p0.YieldMessage(event(i))
	}
	p1.YieldMessage(event(3))

	ds, err := f.Fetch(context.Background(), "events", 0)
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("expected 4 records, got %d", ds.Len())
	}
	exp := datapub.Schema{
		{Name: "at", Kind: datapub.Time},
		{Name: "id", Kind: datapub.Int},
		{Name: "kind", Kind: datapub.String},
	}
	for i := range exp {
		if ds.Schema[i] != exp[i] {
			t.Fatalf("unexpected schema %v", ds.Schema)
		}
	}
	if id := ds.Map(3)["id"]; id != int64(3) {
		t.Fatalf("unexpected id of last record: %v", id)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
}

func TestFetchLimit(t *testing.T) {
	f, consumer := newFetcher(t)
	p0 := consumer.ExpectConsumePartition("events", 0, sarama.OffsetOldest)
	for i := 0; i < 5; i++ {
		p0.YieldMessage(event(i))
	}
	ds, err := f.Fetch(context.Background(), "events", 2)
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", ds.Len())
	}
}

func TestFetchErrors(t *testing.T) {
	f, consumer := newFetcher(t)
	_, err := f.Fetch(context.Background(), "nope", 10)
	if errors.Cause(err) != datapub.ErrNotExist {
		t.Fatalf("expected ErrNotExist for unknown topic, got %v", err)
	}

	p := consumer.ExpectConsumePartition("empty", 0, sarama.OffsetOldest)
	p.YieldMessage(&sarama.ConsumerMessage{Value: []byte("not json")})
	if _, err := f.Fetch(context.Background(), "empty", 10); err == nil {
		t.Fatalf("expected error decoding a non JSON message")
	}
}

func TestFetchSourceSkipsUnknownTopic(t *testing.T) {
	f, consumer := newFetcher(t)
	p0 := consumer.ExpectConsumePartition("events", 0, sarama.OffsetOldest)
	consumer.ExpectConsumePartition("events", 1, sarama.OffsetOldest)
	p0.YieldMessage(event(1))

	src := datapub.NewFetchSource(f, []string{"nope", "events"}, 100)
	ds, err := src.Produce(context.Background())
	if err != nil {
		t.Fatalf("producing: %v", err)
	}
	if ds.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", ds.Len())
	}
	if r := src.KeyResults()[0]; r.Outcome != datapub.OutcomeSkipped {
		t.Fatalf("unknown topic should be skipped: %+v", r)
	}
}
