// Package json reads and writes datasets as JSON lines: one object per
// record, keys in schema order.
package json

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Encoder writes one JSON object per line.
type Encoder struct{}

// NewEncoder returns a JSON lines Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

func (*Encoder) Format() datapub.Format { return datapub.JSONL }

func (*Encoder) Extension() string { return "json" }

func (*Encoder) Encode(w io.Writer, ds *datapub.Dataset) error {
	bw := bufio.NewWriter(w)
	keys := make([][]byte, len(ds.Schema))
	for i, f := range ds.Schema {
		k, err := json.Marshal(f.Name)
		if err != nil {
			return errors.Wrapf(err, "encoding field name '%s'", f.Name)
		}
		keys[i] = k
	}
	line := &bytes.Buffer{}
	for i, rec := range ds.Records {
		line.Reset()
		line.WriteByte('{')
		for j, val := range rec {
			if j > 0 {
				line.WriteByte(',')
			}
			line.Write(keys[j])
			line.WriteByte(':')
			if t, ok := val.(time.Time); ok {
				val = t.UTC().Format(time.RFC3339Nano)
			}
			v, err := json.Marshal(val)
			if err != nil {
				return errors.Wrapf(err, "record %d field '%s'", i, ds.Schema[j].Name)
			}
			line.Write(v)
		}
		line.WriteString("}\n")
		if _, err := bw.Write(line.Bytes()); err != nil {
			return errors.Wrapf(err, "writing record %d", i)
		}
	}
	return errors.Wrap(bw.Flush(), "flushing")
}

// Decoder reads JSON lines into a dataset with a known schema. Keys missing
// from an object decode as nil; keys not in the schema are ignored.
type Decoder struct {
	Schema datapub.Schema
}

// NewDecoder returns a Decoder for schema.
func NewDecoder(schema datapub.Schema) *Decoder {
	return &Decoder{Schema: schema}
}

func (d *Decoder) Decode(r io.Reader) (*datapub.Dataset, error) {
	src := NewSource(r)
	ds := datapub.NewDataset(d.Schema)
	vals := make([]interface{}, len(d.Schema))
	for i := 0; ; i++ {
		obj, err := src.Record()
		if err == io.EOF {
			return ds, nil
		} else if err != nil {
			return nil, errors.Wrapf(err, "decoding record %d", i)
		}
		for j, f := range d.Schema {
			v, err := fromJSON(f.Kind, obj[f.Name])
			if err != nil {
				return nil, errors.Wrapf(err, "record %d field '%s'", i, f.Name)
			}
			vals[j] = v
		}
		if err := ds.Append(vals...); err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
	}
}

// Source decodes a stream of JSON objects, whitespace separated.
type Source struct {
	dec *json.Decoder
}

// NewSource returns a Source reading from r. Numbers are kept as
// json.Number so integers survive exactly.
func NewSource(r io.Reader) *Source {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Source{dec: dec}
}

// Record returns the next object, or io.EOF.
func (s *Source) Record() (map[string]interface{}, error) {
	var res map[string]interface{}
	err := s.dec.Decode(&res)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// fromJSON converts a decoded JSON value to the Go type for kind.
func fromJSON(kind datapub.Kind, val interface{}) (interface{}, error) {
	switch vt := val.(type) {
	case nil:
		return nil, nil
	case json.Number:
		switch kind {
		case datapub.Int:
			return vt.Int64()
		case datapub.Float:
			return vt.Float64()
		default:
			return vt.String(), nil
		}
	case string:
		return vt, nil
	case bool, map[string]interface{}, []interface{}:
		if kind != datapub.String {
			return nil, errors.Errorf("can't use %v of %[1]T as %v", vt, kind)
		}
		b, err := json.Marshal(vt)
		return string(b), err
	default:
		return nil, errors.Errorf("unexpected JSON value %v of %[1]T", vt)
	}
}
