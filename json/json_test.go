package json_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/json"
	"github.com/pilosa/datapub/test"
	"github.com/pkg/errors"
)

func TestRoundTrip(t *testing.T) {
	ds := test.SampleDataset(t)
	buf := &bytes.Buffer{}
	test.ErrNil(t, json.NewEncoder().Encode(buf, ds), "encoding")
	if n := strings.Count(buf.String(), "\n"); n != ds.Len() {
		t.Fatalf("expected %d lines, got %d", ds.Len(), n)
	}

	got, err := json.NewDecoder(ds.Schema).Decode(buf)
	test.ErrNil(t, err, "decoding")
	if err := ds.Equal(got, 0); err != nil {
		t.Fatalf("round trip mismatch: %v", err)
	}
}

func TestEncodeKeyOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	test.ErrNil(t, json.NewEncoder().Encode(buf, test.SampleDataset(t)), "encoding")
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	exp := `{"id":1,"name":"Alice Smith","amount":12.5,"at":"2024-03-01T10:00:00Z"}`
	if first != exp {
		t.Fatalf("unexpected line:\n%s\nexpected:\n%s", first, exp)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(`[
  {"tweet_id": 1, "user": "nasa", "likes": 10, "created_at": "2024-05-01T12:00:00Z"},
  {"tweet_id": 2, "user": "nasa", "likes": 2.5, "created_at": "2024-05-02T12:00:00Z", "extra": true}
]`), 0644)
	test.ErrNil(t, err, "writing array file")
	err = os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"tweet_id": 3, "user": "bbc", "likes": null, "created_at": "2024-05-03T12:00:00Z"}
{"tweet_id": 4, "user": "bbc", "created_at": "2024-05-04T12:00:00Z"}
`), 0644)
	test.ErrNil(t, err, "writing lines file")

	ds, err := json.NewFileSource(dir).Produce(context.Background())
	test.ErrNil(t, err, "producing")

	expSchema := datapub.Schema{
		{Name: "created_at", Kind: datapub.Time},
		{Name: "extra", Kind: datapub.String},
		{Name: "likes", Kind: datapub.Float},
		{Name: "tweet_id", Kind: datapub.Int},
		{Name: "user", Kind: datapub.String},
	}
	if diff := cmp.Diff(expSchema, ds.Schema); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
	if ds.Len() != 4 {
		t.Fatalf("expected 4 records, got %d", ds.Len())
	}
	rec := ds.Map(1)
	test.MustBe(t, rec["extra"], "true")
	test.MustBe(t, rec["likes"], 2.5)
	test.MustBe(t, rec["created_at"], time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC))
	test.MustBe(t, ds.Map(3)["likes"], nil)
	test.MustBe(t, ds.Map(0)["likes"], float64(10))
}

func TestFileSourceEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "empty.json")
	test.ErrNil(t, os.WriteFile(p, []byte("  \n"), 0644), "writing")
	_, err := json.NewFileSource(p).Produce(context.Background())
	if errors.Cause(err) != datapub.ErrEmptyDataset {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}
