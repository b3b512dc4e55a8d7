// Package topics publishes messages read from Kafka topics.
package topics

import (
	"context"
	"strings"
	"time"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/kafka"
	"github.com/pilosa/datapub/usecase/publish"
	"github.com/pkg/errors"
)

// Main holds the options for reading topics and publishing their messages.
type Main struct {
	publish.Main `flag:"!embed"`

	KafkaHosts  []string      `help:"Comma separated list of Kafka brokers."`
	Topics      []string      `help:"Comma separated list of topics to read."`
	RegistryURL string        `help:"Schema registry address. If set, messages are Avro encoded, otherwise JSON."`
	Limit       int           `help:"Maximum number of messages to read per topic. 0 reads every message."`
	IdleTimeout time.Duration `help:"Stop reading a partition after this long without a message."`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		Main:        *publish.NewMain("kafka", "topics"),
		KafkaHosts:  []string{"localhost:9092"},
		Topics:      []string{"test"},
		Limit:       1000,
		IdleTimeout: 2 * time.Second,
	}
}

// Run reads the topics and publishes their messages.
func (m *Main) Run() error {
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	f := m.Fetcher()
	if err := f.Open(); err != nil {
		return &datapub.StageError{Stage: datapub.StageConnect, Op: "connecting to kafka", Target: strings.Join(m.KafkaHosts, ","), Err: err}
	}
	defer f.Close()
	_, err := m.Publish(context.Background(), m.Source(f))
	return err
}

// Fetcher returns an unopened kafka Fetcher configured from m.
func (m *Main) Fetcher() *kafka.Fetcher {
	f := kafka.NewFetcher()
	f.Hosts = m.KafkaHosts
	f.RegistryURL = m.RegistryURL
	f.IdleTimeout = m.IdleTimeout
	f.Log = m.Log()
	return f
}

// Source returns a FetchSource over the configured topics.
func (m *Main) Source(f datapub.Fetcher) *datapub.FetchSource {
	src := datapub.NewFetchSource(f, m.Topics, m.Limit)
	src.Log = m.Log()
	src.Stats = m.Statter()
	return src
}
