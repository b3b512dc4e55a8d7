// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package kafka fetches datasets from Kafka topics.
package kafka

import (
	"bytes"
	"context"
	"io/ioutil"
	"log"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/json"
	"github.com/pkg/errors"
)

// Fetcher is a datapub.Fetcher whose keys are topic names. Each Fetch reads
// a topic from the oldest offset of every partition, without a consumer
// group, so nothing is committed between runs. Values are JSON objects, or
// Confluent framed Avro if RegistryURL is set.
type Fetcher struct {
	Hosts       []string
	RegistryURL string
	// IdleTimeout ends the read of a partition which has delivered no
	// message for this long.
	IdleTimeout time.Duration
	Log         datapub.Logger

	consumer sarama.Consumer
	registry *Registry
}

// NewFetcher gets a new Fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		Hosts:       []string{"localhost:9092"},
		IdleTimeout: 2 * time.Second,
		Log:         datapub.NopLogger{},
	}
}

// Open connects to the brokers.
func (f *Fetcher) Open() error {
	sarama.Logger = log.New(ioutil.Discard, "", 0)
	config := sarama.NewConfig()
	config.Version = sarama.V0_10_0_0
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumer(f.Hosts, config)
	if err != nil {
		return errors.Wrap(err, "getting new consumer")
	}
	f.Use(consumer)
	return nil
}

// Use makes f read through consumer rather than one created by Open.
func (f *Fetcher) Use(consumer sarama.Consumer) {
	f.consumer = consumer
	if f.RegistryURL != "" {
		f.registry = NewRegistry(f.RegistryURL)
	}
}

// Close closes the underlying kafka consumer.
func (f *Fetcher) Close() error {
	if f.consumer == nil {
		return nil
	}
	err := f.consumer.Close()
	return errors.Wrap(err, "closing kafka consumer")
}

// Fetch implements datapub.Fetcher, reading at most limit messages from
// topic (all available messages if limit is zero or less).
func (f *Fetcher) Fetch(ctx context.Context, topic string, limit int) (*datapub.Dataset, error) {
	if f.consumer == nil {
		return nil, errors.New("fetcher is not open")
	}
	partitions, err := f.consumer.Partitions(topic)
	if err == sarama.ErrUnknownTopicOrPartition {
		return nil, errors.Wrapf(datapub.ErrNotExist, "topic %s", topic)
	} else if err != nil {
		return nil, errors.Wrapf(err, "getting partitions of %s", topic)
	}
	var msgs []*sarama.ConsumerMessage
	for _, p := range partitions {
		want := 0
		if limit > 0 {
			want = limit - len(msgs)
			if want <= 0 {
				break
			}
		}
		pmsgs, err := f.consumePartition(ctx, topic, p, want)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, pmsgs...)
	}
	f.Log.Debugf("read %d messages from %s", len(msgs), topic)
	if f.registry != nil {
		return f.decodeAvro(ctx, msgs)
	}
	return decodeJSON(msgs)
}

// consumePartition reads up to want messages (all if want is 0) from the
// oldest offset, stopping after IdleTimeout without a message.
func (f *Fetcher) consumePartition(ctx context.Context, topic string, partition int32, want int) ([]*sarama.ConsumerMessage, error) {
	pc, err := f.consumer.ConsumePartition(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return nil, errors.Wrapf(err, "consuming %s/%d", topic, partition)
	}
	defer pc.AsyncClose()

	var msgs []*sarama.ConsumerMessage
	errs := pc.Errors()
	idle := time.NewTimer(f.IdleTimeout)
	defer idle.Stop()
	for want == 0 || len(msgs) < want {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				return msgs, nil
			}
			msgs = append(msgs, msg)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(f.IdleTimeout)
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return nil, errors.Wrapf(cerr.Err, "consuming %s/%d", topic, partition)
		case <-idle.C:
			return msgs, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return msgs, nil
}

func decodeJSON(msgs []*sarama.ConsumerMessage) (*datapub.Dataset, error) {
	objs := make([]map[string]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		obj, err := json.NewSource(bytes.NewReader(msg.Value)).Record()
		if err != nil {
			return nil, errors.Wrapf(err, "unmarshaling json at %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}
		objs = append(objs, obj)
	}
	return json.NewDataset(objs)
}

func (f *Fetcher) decodeAvro(ctx context.Context, msgs []*sarama.ConsumerMessage) (*datapub.Dataset, error) {
	var ds *datapub.Dataset
	for _, msg := range msgs {
		schema, vals, err := f.registry.Decode(ctx, msg.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}
		if ds == nil {
			ds = datapub.NewDataset(schema)
		}
		if err := ds.Append(vals...); err != nil {
			return nil, errors.Wrapf(err, "%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
		}
	}
	if ds == nil {
		ds = datapub.NewDataset(nil)
	}
	return ds, nil
}
