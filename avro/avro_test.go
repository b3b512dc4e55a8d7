package avro_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/avro"
	"github.com/pilosa/datapub/test"
)

func TestRoundTrip(t *testing.T) {
	for _, codec := range []string{"null", "deflate"} {
		t.Run(codec, func(t *testing.T) {
			ds := test.SampleDataset(t)
			buf := &bytes.Buffer{}
			enc := avro.NewEncoder()
			enc.Codec = codec
			test.ErrNil(t, enc.Encode(buf, ds), "encoding")

			got, err := avro.NewDecoder().Decode(buf)
			test.ErrNil(t, err, "decoding")
			if err := ds.Equal(got, 0); err != nil {
				t.Fatalf("round trip mismatch: %v", err)
			}
		})
	}
}

func TestRoundTripEmpty(t *testing.T) {
	ds := datapub.NewDataset(datapub.Schema{{Name: "a", Kind: datapub.String}})
	buf := &bytes.Buffer{}
	test.ErrNil(t, avro.NewEncoder().Encode(buf, ds), "encoding")
	got, err := avro.NewDecoder().Decode(buf)
	test.ErrNil(t, err, "decoding")
	if got.Len() != 0 || len(got.Schema) != 1 {
		t.Fatalf("unexpected dataset: %v", got)
	}
}

func TestSchema(t *testing.T) {
	s, err := avro.NewEncoder().Schema(test.SampleDataset(t).Schema)
	test.ErrNil(t, err, "building schema")
	if !strings.Contains(s, `{"name":"at","type":["null",{"logicalType":"timestamp-millis","type":"long"}]}`) {
		t.Fatalf("unexpected timestamp field in %s", s)
	}
}

func TestEncodeNoFields(t *testing.T) {
	if err := avro.NewEncoder().Encode(&bytes.Buffer{}, datapub.NewDataset(nil)); err == nil {
		t.Fatalf("expected error encoding a dataset with no fields")
	}
}
