// Package publish holds the configuration and run logic shared by every
// datapub command: which store to publish to, where, and in which formats.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/avro"
	"github.com/pilosa/datapub/aws/s3"
	"github.com/pilosa/datapub/boltdb"
	"github.com/pilosa/datapub/csv"
	"github.com/pilosa/datapub/file"
	"github.com/pilosa/datapub/json"
	"github.com/pilosa/datapub/logger"
	"github.com/pilosa/datapub/parquet"
	"github.com/pilosa/datapub/termstat"
	"github.com/pilosa/datapub/webhdfs"
	"github.com/pkg/errors"
)

// Main holds the options common to every publishing command. Commands embed
// it and call Publish with their Source.
type Main struct {
	Store    string        `help:"Remote store to publish to: webhdfs, s3, bolt, or file."`
	HDFSURL  string        `flag:"hdfs-url" help:"WebHDFS namenode address."`
	HDFSUser string        `flag:"hdfs-user" help:"User WebHDFS requests are made as."`
	Dir      string        `help:"Remote directory to publish into. Empty means /user/<hdfs-user>."`
	LocalDir string        `help:"Local directory files are written to before upload."`
	BaseName string        `help:"File name, without extension, of every published file."`
	Formats  []string      `help:"Comma separated list of formats to write: csv, jsonl, parquet, avro."`
	S3Bucket string        `flag:"s3-bucket" help:"S3 bucket for the s3 store."`
	S3Region string        `flag:"s3-region" help:"AWS region of the S3 bucket."`
	S3Prefix string        `flag:"s3-prefix" help:"Key prefix under which the s3 store keeps files."`
	BoltPath string        `help:"Database file for the bolt store."`
	FileRoot string        `help:"Root directory for the file store."`
	Timeout  time.Duration `help:"Timeout for each request to the remote store."`
	Verbose  bool          `help:"Enable verbose logging."`
	LogJSON  bool          `flag:"log-json" help:"Log JSON lines instead of text."`
	Stats    bool          `help:"Print run statistics when done."`
	TLS      datapub.TLSConfig

	Stdout io.Writer `flag:"-"`

	log   datapub.Logger
	stats datapub.Statter
	term  *termstat.Collector
}

// NewMain returns a Main publishing as user to WebHDFS, writing files named
// baseName.
func NewMain(user, baseName string) *Main {
	return &Main{
		Store:    "webhdfs",
		HDFSURL:  "http://namenode:9870",
		HDFSUser: user,
		LocalDir: ".",
		BaseName: baseName,
		Formats:  []string{string(datapub.CSV), string(datapub.JSONL), string(datapub.Parquet)},
		S3Region: "us-east-1",
		BoltPath: "datapub.db",
		FileRoot: "published",
		Timeout:  time.Minute,
		Stdout:   os.Stdout,
	}
}

// Log returns the logger set up by Setup.
func (m *Main) Log() datapub.Logger {
	if m.log == nil {
		return datapub.NopLogger{}
	}
	return m.log
}

// Statter returns the statter set up by Setup.
func (m *Main) Statter() datapub.Statter {
	if m.stats == nil {
		return datapub.NopStatter{}
	}
	return m.stats
}

// Setup validates the options and creates the logger. It must be called
// before Log is used to build a Source.
func (m *Main) Setup() error {
	if m.Stdout == nil {
		m.Stdout = os.Stdout
	}
	switch {
	case m.LogJSON:
		m.log = logger.NewJSONLogger(m.Stdout, m.Verbose)
	case m.Verbose:
		m.log = logger.NewVerboseLogger(m.Stdout)
	default:
		m.log = logger.NewStandardLogger(m.Stdout)
	}
	m.stats = datapub.NopStatter{}
	if m.Stats {
		m.term = termstat.NewCollector(m.Stdout)
		m.stats = m.term
	}
	if m.Dir == "" {
		if m.HDFSUser == "" {
			return errors.New("one of dir or hdfs-user must be set")
		}
		m.Dir = "/user/" + m.HDFSUser
	}
	if !strings.HasPrefix(m.Dir, "/") {
		return errors.Errorf("dir must be absolute, got '%s'", m.Dir)
	}
	if len(m.Formats) == 0 {
		return errors.New("at least one format must be given")
	}
	_, err := m.encoders()
	return err
}

// Config returns the publisher configuration described by m.
func (m *Main) Config() datapub.Config {
	formats := make([]datapub.Format, len(m.Formats))
	for i, f := range m.Formats {
		formats[i] = datapub.Format(strings.ToLower(strings.TrimSpace(f)))
	}
	return datapub.Config{
		Dir:      m.Dir,
		LocalDir: m.LocalDir,
		BaseName: m.BaseName,
		Formats:  formats,
	}
}

func (m *Main) encoders() ([]datapub.Encoder, error) {
	var encs []datapub.Encoder
	for _, f := range m.Config().Formats {
		switch f {
		case datapub.CSV:
			encs = append(encs, csv.NewEncoder())
		case datapub.JSONL:
			encs = append(encs, json.NewEncoder())
		case datapub.Parquet:
			encs = append(encs, parquet.NewEncoder())
		case datapub.Avro:
			encs = append(encs, avro.NewEncoder())
		default:
			return nil, errors.Errorf("unknown format '%s'", f)
		}
	}
	return encs, nil
}

// OpenStore connects to the configured store.
func (m *Main) OpenStore(ctx context.Context) (datapub.Store, error) {
	switch m.Store {
	case "webhdfs", "hdfs":
		tlsConfig, err := datapub.GetTLSConfig(&m.TLS)
		if err != nil {
			return nil, errors.Wrap(err, "getting TLS config")
		}
		opts := []webhdfs.StoreOption{
			webhdfs.OptStoreUser(m.HDFSUser),
			webhdfs.OptStoreLogger(m.Log()),
		}
		if tlsConfig != nil {
			opts = append(opts, webhdfs.OptStoreTLS(tlsConfig))
		}
		if m.Timeout > 0 {
			opts = append(opts, webhdfs.OptStoreTimeout(m.Timeout))
		}
		s, err := webhdfs.Dial(ctx, m.HDFSURL, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		opts := []s3.StoreOption{s3.OptStorePrefix(m.S3Prefix)}
		if m.S3Region != "" {
			opts = append(opts, s3.OptStoreRegion(m.S3Region))
		}
		s, err := s3.NewStore(ctx, m.S3Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bolt":
		s, err := boltdb.Open(m.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		s, err := file.NewStore(m.FileRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.Errorf("unknown store '%s'", m.Store)
}

func (m *Main) storeAddr() string {
	switch m.Store {
	case "s3":
		return "s3://" + m.S3Bucket
	case "bolt":
		return m.BoltPath
	case "file":
		return m.FileRoot
	}
	return m.HDFSURL
}

// Publish connects to the store and runs a complete publish of the dataset
// src produces. It prints the remote directory listing, and returns an error
// if any fatal failure occurred.
func (m *Main) Publish(ctx context.Context, src datapub.Source) (*datapub.Summary, error) {
	if m.log == nil {
		if err := m.Setup(); err != nil {
			return nil, errors.Wrap(err, "setting up")
		}
	}
	store, err := m.OpenStore(ctx)
	if err != nil {
		m.log.Printf("Error connecting to %s: %v", m.storeAddr(), err)
		return nil, &datapub.StageError{Stage: datapub.StageConnect, Op: "connecting to " + m.Store, Target: m.storeAddr(), Err: err}
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				m.log.Printf("Error closing store: %v", err)
			}
		}()
	}
	return m.PublishTo(ctx, store, src)
}

// PublishTo is Publish against an already connected store.
func (m *Main) PublishTo(ctx context.Context, store datapub.Store, src datapub.Source) (*datapub.Summary, error) {
	if m.log == nil {
		if err := m.Setup(); err != nil {
			return nil, errors.Wrap(err, "setting up")
		}
	}
	encs, err := m.encoders()
	if err != nil {
		return nil, err
	}
	pub, err := datapub.NewPublisher(store, m.Config(), encs...)
	if err != nil {
		return nil, errors.Wrap(err, "creating publisher")
	}
	pub.Log = m.log
	pub.Stats = m.stats

	sum, err := pub.Run(ctx, src)
	m.report(sum)
	return sum, err
}

func (m *Main) report(sum *datapub.Summary) {
	for _, kr := range sum.Keys {
		if kr.Outcome == datapub.OutcomeSkipped {
			m.log.Debugf("skipped %s: %v", kr.Key, kr.Err)
		}
	}
	for _, r := range sum.Failed() {
		m.log.Debugf("failed: %v", r.Err)
	}
	if sum.Listing != nil {
		fmt.Fprintf(m.Stdout, "\nFiles in directory %s:\n", m.Dir)
		for _, name := range sum.Listing {
			fmt.Fprintln(m.Stdout, name)
		}
	}
	if m.term != nil {
		if err := m.term.Write(); err != nil {
			m.log.Printf("Error writing stats: %v", err)
		}
	}
}
