// Package avro encodes datasets as Avro object container files.
package avro

import (
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Encoder writes an OCF file whose record schema has one nullable field per
// dataset field. Times use the timestamp-millis logical type.
type Encoder struct {
	// Name is the Avro record name.
	Name string
	// Codec is the OCF block compression, "null" or "deflate".
	Codec string
}

// NewEncoder returns an Avro Encoder.
func NewEncoder() *Encoder {
	return &Encoder{Name: "Record", Codec: goavro.CompressionDeflateLabel}
}

func (*Encoder) Format() datapub.Format { return datapub.Avro }

func (*Encoder) Extension() string { return "avro" }

type avroField struct {
	Name string        `json:"name"`
	Type []interface{} `json:"type"`
}

type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

// Schema returns the Avro schema JSON for a dataset schema.
func (e *Encoder) Schema(schema datapub.Schema) (string, error) {
	as := avroSchema{Type: "record", Name: e.Name, Fields: make([]avroField, len(schema))}
	for i, f := range schema {
		as.Fields[i] = avroField{Name: f.Name, Type: []interface{}{"null", avroType(f.Kind)}}
	}
	b, err := json.Marshal(as)
	return string(b), errors.Wrap(err, "marshaling avro schema")
}

func avroType(kind datapub.Kind) interface{} {
	switch kind {
	case datapub.Int:
		return "long"
	case datapub.Float:
		return "double"
	case datapub.Time:
		return map[string]string{"type": "long", "logicalType": "timestamp-millis"}
	default:
		return "string"
	}
}

// unionBranch is the goavro union branch name for kind.
func unionBranch(kind datapub.Kind) string {
	switch kind {
	case datapub.Int:
		return "long"
	case datapub.Float:
		return "double"
	case datapub.Time:
		return "long.timestamp-millis"
	default:
		return "string"
	}
}

func (e *Encoder) Encode(w io.Writer, ds *datapub.Dataset) error {
	if len(ds.Schema) == 0 {
		return errors.New("dataset has no fields")
	}
	schema, err := e.Schema(ds.Schema)
	if err != nil {
		return err
	}
	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          schema,
		CompressionName: e.Codec,
	})
	if err != nil {
		return errors.Wrap(err, "creating OCF writer")
	}
	batch := make([]interface{}, 0, 1000)
	for _, rec := range ds.Records {
		datum := make(map[string]interface{}, len(rec))
		for j, val := range rec {
			if val == nil {
				datum[ds.Schema[j].Name] = nil
				continue
			}
			datum[ds.Schema[j].Name] = goavro.Union(unionBranch(ds.Schema[j].Kind), val)
		}
		batch = append(batch, datum)
		if len(batch) == cap(batch) {
			if err := ocfw.Append(batch); err != nil {
				return errors.Wrap(err, "appending records")
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := ocfw.Append(batch); err != nil {
			return errors.Wrap(err, "appending records")
		}
	}
	return nil
}

// Decoder reads OCF files written by Encoder.
type Decoder struct{}

// NewDecoder returns an Avro Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

func (*Decoder) Decode(r io.Reader) (*datapub.Dataset, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "creating OCF reader")
	}
	schema, err := ParseSchema(ocfr.Codec().Schema())
	if err != nil {
		return nil, err
	}
	ds := datapub.NewDataset(schema)
	vals := make([]interface{}, len(schema))
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "reading record %d", ds.Len())
		}
		m, ok := datum.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("record %d is a %T, not a record", ds.Len(), datum)
		}
		for i, f := range schema {
			vals[i] = Unwrap(m[f.Name])
		}
		if err := ds.Append(vals...); err != nil {
			return nil, errors.Wrapf(err, "record %d", ds.Len())
		}
	}
	return ds, errors.Wrap(ocfr.Err(), "scanning")
}

// Unwrap strips the single-entry map goavro uses for union values.
func Unwrap(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for _, inner := range m {
		if t, ok := inner.(time.Time); ok {
			return t.UTC()
		}
		return inner
	}
	return nil
}

// ParseSchema maps an Avro record schema to a dataset schema. Fields must
// be primitives, timestamps, or nullable unions of those.
func ParseSchema(s string) (datapub.Schema, error) {
	var raw struct {
		Fields []struct {
			Name string          `json:"name"`
			Type json.RawMessage `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, errors.Wrap(err, "parsing avro schema")
	}
	schema := make(datapub.Schema, len(raw.Fields))
	for i, f := range raw.Fields {
		kind, err := kindOf(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "field '%s'", f.Name)
		}
		schema[i] = datapub.Field{Name: f.Name, Kind: kind}
	}
	return schema, nil
}

// kindOf maps an Avro field type, possibly a ["null", T] union, to a Kind.
func kindOf(raw json.RawMessage) (datapub.Kind, error) {
	var union []json.RawMessage
	if err := json.Unmarshal(raw, &union); err == nil {
		for _, branch := range union {
			if string(branch) != `"null"` {
				return kindOf(branch)
			}
		}
		return 0, errors.New("union has no non-null branch")
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return primitiveKind(name, "")
	}
	var complex struct {
		Type        string `json:"type"`
		LogicalType string `json:"logicalType"`
	}
	if err := json.Unmarshal(raw, &complex); err != nil {
		return 0, errors.Wrap(err, "parsing field type")
	}
	return primitiveKind(complex.Type, complex.LogicalType)
}

func primitiveKind(name, logical string) (datapub.Kind, error) {
	switch name {
	case "long", "int":
		if logical == "timestamp-millis" || logical == "timestamp-micros" {
			return datapub.Time, nil
		}
		return datapub.Int, nil
	case "double", "float":
		return datapub.Float, nil
	case "string", "bytes":
		return datapub.String, nil
	}
	return 0, errors.Errorf("unsupported avro type '%s'", name)
}
