package parquet_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/pilosa/datapub"
	dparquet "github.com/pilosa/datapub/parquet"
	"github.com/pilosa/datapub/test"
)

func TestRoundTrip(t *testing.T) {
	ds := test.SampleDataset(t)
	buf := &bytes.Buffer{}
	test.ErrNil(t, dparquet.NewEncoder().Encode(buf, ds), "encoding")

	got, err := dparquet.NewDecoder().Decode(bytes.NewReader(buf.Bytes()))
	test.ErrNil(t, err, "decoding")
	if err := ds.Equal(got, 0); err != nil {
		t.Fatalf("round trip mismatch: %v", err)
	}
}

func TestRoundTripFloat32(t *testing.T) {
	ds := test.SampleDataset(t)
	buf := &bytes.Buffer{}
	test.ErrNil(t, (&dparquet.Encoder{Float32: true}).Encode(buf, ds), "encoding")

	got, err := dparquet.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	if err := ds.Equal(got, 1e-6); err != nil {
		t.Fatalf("round trip mismatch: %v", err)
	}
}

func TestRoundTripLarge(t *testing.T) {
	ds := datapub.NewDataset(datapub.Schema{{Name: "n", Kind: datapub.Int}})
	for i := 0; i < 3000; i++ {
		test.ErrNil(t, ds.Append(int64(i)), "appending")
	}
	buf := &bytes.Buffer{}
	test.ErrNil(t, dparquet.NewEncoder().Encode(buf, ds), "encoding")
	got, err := dparquet.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	if err := ds.Equal(got, 0); err != nil {
		t.Fatalf("round trip mismatch: %v", err)
	}
}

type event struct {
	Name  string    `parquet:"name"`
	Count int64     `parquet:"count"`
	At    time.Time `parquet:"at,timestamp(millisecond)"`
}

// Files from other writers carry no schema metadata.
func TestDecodeForeign(t *testing.T) {
	buf := &bytes.Buffer{}
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	err := parquet.Write(buf, []event{{Name: "a", Count: 3, At: at}})
	test.ErrNil(t, err, "writing foreign file")

	got, err := dparquet.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	test.MustBe(t, got.Schema, datapub.Schema{
		{Name: "name", Kind: datapub.String},
		{Name: "count", Kind: datapub.Int},
		{Name: "at", Kind: datapub.Time},
	})
	test.MustBe(t, got.Records, [][]interface{}{{"a", int64(3), at}})
}

func TestEncodeNoFields(t *testing.T) {
	ds := datapub.NewDataset(nil)
	if err := dparquet.NewEncoder().Encode(&bytes.Buffer{}, ds); err == nil {
		t.Fatalf("expected error encoding a dataset with no fields")
	}
}

// Times outside the range of int64 nanoseconds still round trip.
func TestRoundTripFarTimes(t *testing.T) {
	ds := datapub.NewDataset(datapub.Schema{{Name: "at", Kind: datapub.Time}})
	for _, at := range []time.Time{
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 6, 1, 12, 30, 0, 0, time.UTC),
	} {
		test.ErrNil(t, ds.Append(at), "appending")
	}
	buf := &bytes.Buffer{}
	test.ErrNil(t, dparquet.NewEncoder().Encode(buf, ds), "encoding")
	got, err := dparquet.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	if err := ds.Equal(got, 0); err != nil {
		t.Fatalf("round trip mismatch: %v", err)
	}
}

type microEvent struct {
	At time.Time `parquet:"at,timestamp(microsecond)"`
}

func TestDecodeForeignMicros(t *testing.T) {
	at := time.Date(2200, 3, 4, 5, 6, 7, 8000, time.UTC)
	buf := &bytes.Buffer{}
	test.ErrNil(t, parquet.Write(buf, []microEvent{{At: at}}), "writing")
	got, err := dparquet.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	if got.Len() != 1 || !got.Records[0][0].(time.Time).Equal(at) {
		t.Fatalf("unexpected dataset: %v", got.Records)
	}
}
