// Package parquet encodes datasets as Parquet files.
package parquet

import (
	"bytes"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// schemaKey is the key-value metadata entry holding the datapub schema, so
// field order and kinds survive the round trip.
const schemaKey = "datapub.schema"

const rowBatch = 1024

// Encoder writes a single Parquet file with one optional column per field.
// Times are stored as TIMESTAMP(MILLIS).
type Encoder struct {
	// Float32 stores float fields as 32 bit floats.
	Float32 bool
}

// NewEncoder returns a Parquet Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

func (*Encoder) Format() datapub.Format { return datapub.Parquet }

func (*Encoder) Extension() string { return "parquet" }

func (e *Encoder) Encode(w io.Writer, ds *datapub.Dataset) error {
	if len(ds.Schema) == 0 {
		return errors.New("dataset has no fields")
	}
	group := parquet.Group{}
	for _, f := range ds.Schema {
		group[f.Name] = parquet.Optional(e.node(f.Kind))
	}
	schema := parquet.NewSchema("dataset", group)
	meta, err := json.Marshal(ds.Schema)
	if err != nil {
		return errors.Wrap(err, "encoding schema metadata")
	}
	cols, err := columnIndexes(schema, ds.Schema)
	if err != nil {
		return err
	}

	pw := parquet.NewWriter(w, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(schemaKey, string(meta)),
	)
	rows := make([]parquet.Row, 0, rowBatch)
	for i, rec := range ds.Records {
		row := make(parquet.Row, len(rec))
		for j, val := range rec {
			v, err := e.value(val)
			if err != nil {
				return errors.Wrapf(err, "record %d field '%s'", i, ds.Schema[j].Name)
			}
			def := 1
			if v.IsNull() {
				def = 0
			}
			row[cols[j]] = v.Level(0, def, cols[j])
		}
		rows = append(rows, row)
		if len(rows) == rowBatch {
			if _, err := pw.WriteRows(rows); err != nil {
				return errors.Wrap(err, "writing rows")
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return errors.Wrap(err, "writing rows")
		}
	}
	return errors.Wrap(pw.Close(), "closing writer")
}

func (e *Encoder) node(kind datapub.Kind) parquet.Node {
	switch kind {
	case datapub.Int:
		return parquet.Int(64)
	case datapub.Float:
		if e.Float32 {
			return parquet.Leaf(parquet.FloatType)
		}
		return parquet.Leaf(parquet.DoubleType)
	case datapub.Time:
		return parquet.Timestamp(parquet.Millisecond)
	default:
		return parquet.String()
	}
}

func (e *Encoder) value(val interface{}) (parquet.Value, error) {
	switch vt := val.(type) {
	case nil:
		return parquet.NullValue(), nil
	case string:
		return parquet.ByteArrayValue([]byte(vt)), nil
	case int64:
		return parquet.Int64Value(vt), nil
	case float64:
		if e.Float32 {
			return parquet.FloatValue(float32(vt)), nil
		}
		return parquet.DoubleValue(vt), nil
	case time.Time:
		return parquet.Int64Value(vt.UnixMilli()), nil
	default:
		return parquet.Value{}, errors.Errorf("unsupported value %v of %[1]T", vt)
	}
}

// columnIndexes returns the leaf column index of each field of fields.
func columnIndexes(schema *parquet.Schema, fields datapub.Schema) ([]int, error) {
	leaves := make(map[string]int)
	for i, path := range schema.Columns() {
		if len(path) == 1 {
			leaves[path[0]] = i
		}
	}
	cols := make([]int, len(fields))
	for i, f := range fields {
		c, ok := leaves[f.Name]
		if !ok {
			return nil, errors.Errorf("field '%s' is not a top level parquet column", f.Name)
		}
		cols[i] = c
	}
	return cols, nil
}

// Decoder reads Parquet files. Files written by Encoder carry their schema;
// for other files the schema is derived from the top level primitive
// columns.
type Decoder struct{}

// NewDecoder returns a Parquet Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

func (*Decoder) Decode(r io.Reader) (*datapub.Dataset, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading")
	}
	f, err := parquet.OpenFile(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet file")
	}
	var schema datapub.Schema
	units := make(map[string]time.Duration)
	if meta, ok := f.Lookup(schemaKey); ok {
		if err := json.Unmarshal([]byte(meta), &schema); err != nil {
			return nil, errors.Wrap(err, "decoding schema metadata")
		}
	} else {
		schema, units = deriveSchema(f.Schema())
	}
	cols, err := columnIndexes(f.Schema(), schema)
	if err != nil {
		return nil, err
	}
	fieldOf := make(map[int]int, len(cols))
	for i, c := range cols {
		fieldOf[c] = i
	}

	ds := datapub.NewDataset(schema)
	pr := parquet.NewReader(bytes.NewReader(b))
	defer pr.Close()
	rows := make([]parquet.Row, rowBatch)
	vals := make([]interface{}, len(schema))
	for {
		n, err := pr.ReadRows(rows)
		for _, row := range rows[:n] {
			for i := range vals {
				vals[i] = nil
			}
			for _, v := range row {
				i, ok := fieldOf[v.Column()]
				if !ok || v.IsNull() {
					continue
				}
				unit, ok := units[schema[i].Name]
				if !ok {
					unit = time.Millisecond
				}
				vals[i] = fromValue(schema[i].Kind, v, unit)
			}
			if err := ds.Append(vals...); err != nil {
				return nil, errors.Wrapf(err, "row %d", ds.Len())
			}
		}
		if err == io.EOF {
			return ds, nil
		} else if err != nil {
			return nil, errors.Wrap(err, "reading rows")
		}
	}
}

func fromValue(kind datapub.Kind, v parquet.Value, unit time.Duration) interface{} {
	switch kind {
	case datapub.Int:
		if v.Kind() == parquet.Int32 {
			return int64(v.Int32())
		}
		return v.Int64()
	case datapub.Float:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	case datapub.Time:
		n := v.Int64()
		switch unit {
		case time.Millisecond:
			return time.UnixMilli(n).UTC()
		case time.Microsecond:
			return time.UnixMicro(n).UTC()
		default:
			return time.Unix(0, n).UTC()
		}
	default:
		return string(v.ByteArray())
	}
}

// deriveSchema maps the top level primitive columns of s to fields, along
// with the unit of each timestamp column.
func deriveSchema(s *parquet.Schema) (datapub.Schema, map[string]time.Duration) {
	var schema datapub.Schema
	units := make(map[string]time.Duration)
	for _, f := range s.Fields() {
		if !f.Leaf() {
			continue
		}
		typ := f.Type()
		var kind datapub.Kind
		switch typ.Kind() {
		case parquet.Int32, parquet.Int64:
			kind = datapub.Int
			if lt := typ.LogicalType(); lt != nil && lt.Timestamp != nil {
				kind = datapub.Time
				units[f.Name()] = timestampUnit(lt.Timestamp)
			}
		case parquet.Float, parquet.Double:
			kind = datapub.Float
		case parquet.ByteArray, parquet.FixedLenByteArray:
			kind = datapub.String
		default:
			continue
		}
		schema = append(schema, datapub.Field{Name: f.Name(), Kind: kind})
	}
	return schema, units
}

func timestampUnit(ts *format.TimestampType) time.Duration {
	switch {
	case ts.Unit.Nanos != nil:
		return time.Nanosecond
	case ts.Unit.Micros != nil:
		return time.Microsecond
	default:
		return time.Millisecond
	}
}
