package datapub_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/logger"
	"github.com/pilosa/datapub/mock"
	"github.com/pkg/errors"
)

var tweetSchema = datapub.Schema{
	{Name: "user", Kind: datapub.String},
	{Name: "likes", Kind: datapub.Int},
}

func tweets(t *testing.T, user string, n int) *datapub.Dataset {
	ds := datapub.NewDataset(tweetSchema)
	for i := 0; i < n; i++ {
		if err := ds.Append(user, i); err != nil {
			t.Fatalf("appending: %v", err)
		}
	}
	return ds
}

func TestFetchSource(t *testing.T) {
	f := &mock.Fetcher{
		Data: map[string]*datapub.Dataset{
			"alice": tweets(t, "alice", 3),
			"bob":   tweets(t, "bob", 2),
			"empty": tweets(t, "empty", 0),
			"other": datapub.NewDataset(datapub.Schema{{Name: "x", Kind: datapub.Float}}),
		},
		Errors: map[string]error{
			"protected": errors.Wrap(datapub.ErrForbidden, "403"),
			"busy":      errors.Wrap(datapub.ErrRateLimited, "429"),
			"broken":    errors.New("connection reset"),
		},
	}
	f.Data["other"].Append(1.5)

	keys := []string{"protected", "empty", "alice", "busy", "missing", "other", "broken", "bob"}
	src := datapub.NewFetchSource(f, keys, 2)
	ds, err := src.Produce(context.Background())
	if err != nil {
		t.Fatalf("producing: %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("expected 2 records each of alice and bob, got %d", ds.Len())
	}
	if ds.Records[0][0] != "alice" || ds.Records[3][0] != "bob" {
		t.Fatalf("records out of key order: %v", ds.Records)
	}
	if f.Data["alice"].Len() != 3 {
		t.Fatalf("fetched dataset should not be modified")
	}

	exp := map[string]datapub.Outcome{
		"protected": datapub.OutcomeSkipped,
		"empty":     datapub.OutcomeOK,
		"alice":     datapub.OutcomeOK,
		"busy":      datapub.OutcomeSkipped,
		"missing":   datapub.OutcomeSkipped,
		"other":     datapub.OutcomeSkipped,
		"broken":    datapub.OutcomeSkipped,
		"bob":       datapub.OutcomeOK,
	}
	results := src.KeyResults()
	if len(results) != len(keys) {
		t.Fatalf("expected a result per key, got %v", results)
	}
	for i, r := range results {
		if r.Key != keys[i] || r.Outcome != exp[r.Key] {
			t.Fatalf("unexpected result %d: %+v", i, r)
		}
	}
	if errors.Cause(results[0].Err) != datapub.ErrForbidden {
		t.Fatalf("forbidden cause lost: %v", results[0].Err)
	}
	if errors.Cause(results[5].Err) != datapub.ErrSchemaMismatch {
		t.Fatalf("expected a schema mismatch for 'other', got %v", results[5].Err)
	}
	if errors.Cause(results[6].Err) == datapub.ErrSchemaMismatch {
		t.Fatalf("fetch error reported as a schema mismatch: %v", results[6].Err)
	}
	if results[2].Records != 2 {
		t.Fatalf("expected 2 records for alice, got %d", results[2].Records)
	}
}

func TestFetchSourceLogsSchemaMismatch(t *testing.T) {
	f := &mock.Fetcher{
		Data: map[string]*datapub.Dataset{
			"alice": tweets(t, "alice", 1),
			"other": datapub.NewDataset(datapub.Schema{{Name: "x", Kind: datapub.Float}}),
		},
	}
	f.Data["other"].Append(1.5)
	buf := &bytes.Buffer{}
	src := datapub.NewFetchSource(f, []string{"alice", "other"}, 10)
	src.Log = logger.NewStandardLogger(buf)
	if _, err := src.Produce(context.Background()); err != nil {
		t.Fatalf("producing: %v", err)
	}
	if !strings.Contains(buf.String(), "Schema mismatch for other") {
		t.Fatalf("expected a schema mismatch log line, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Error fetching records for other") {
		t.Fatalf("schema mismatch logged as a fetch error:\n%s", buf.String())
	}
}

func TestFetchSourceEmpty(t *testing.T) {
	f := &mock.Fetcher{Errors: map[string]error{"a": datapub.ErrForbidden}}
	_, err := datapub.NewFetchSource(f, []string{"a", "b"}, 10).Produce(context.Background())
	if errors.Cause(err) != datapub.ErrEmptyDataset {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}

	ds, err := datapub.NewFetchSource(f, nil, 10).Produce(context.Background())
	if err != nil || ds.Len() != 0 {
		t.Fatalf("no keys should give an empty dataset: %v, %v", ds, err)
	}
}

func TestRunWithFetchSource(t *testing.T) {
	f := &mock.Fetcher{
		Data:   map[string]*datapub.Dataset{"alice": tweets(t, "alice", 3)},
		Errors: map[string]error{"bob": datapub.ErrRateLimited},
	}
	store := mock.NewStore()
	p := newPublisher(t, store)
	sum, err := p.Run(context.Background(), datapub.NewTransformSource(datapub.NewFetchSource(f, []string{"bob", "alice"}, 100)))
	if err != nil {
		t.Fatalf("a skipped key should not fail the run: %v", err)
	}
	if sum.Records != 3 || len(sum.Keys) != 2 || sum.Keys[0].Outcome != datapub.OutcomeSkipped {
		t.Fatalf("unexpected summary: %d records, keys %+v", sum.Records, sum.Keys)
	}
}
