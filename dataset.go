package datapub

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Kind is the scalar type of a Field.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Time
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Time:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return String, nil
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "time":
		return Time, nil
	}
	return 0, errors.Errorf("unknown field kind '%s'", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) (err error) {
	*k, err = ParseKind(string(text))
	return err
}

// Field is a named, typed column.
type Field struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Schema is the ordered field set shared by every record of a Dataset.
type Schema []Field

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Dataset is an ordered sequence of records. Each record holds one value per
// Schema field, in Schema order. Values are string, int64, float64,
// time.Time, or nil.
type Dataset struct {
	Schema  Schema
	Records [][]interface{}
}

// NewDataset returns an empty Dataset with the given schema.
func NewDataset(schema Schema) *Dataset {
	return &Dataset{Schema: schema}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Append coerces vals to the schema's kinds and adds them as a new record.
func (d *Dataset) Append(vals ...interface{}) error {
	if len(vals) != len(d.Schema) {
		return errors.Errorf("record has %d values, schema has %d fields", len(vals), len(d.Schema))
	}
	rec := make([]interface{}, len(vals))
	for i, v := range vals {
		cv, err := Coerce(d.Schema[i].Kind, v)
		if err != nil {
			return errors.Wrapf(err, "field '%s'", d.Schema[i].Name)
		}
		rec[i] = cv
	}
	d.Records = append(d.Records, rec)
	return nil
}

// Concat appends every record of other, whose schema must match d's.
func (d *Dataset) Concat(other *Dataset) error {
	if other == nil {
		return nil
	}
	if len(d.Schema) != len(other.Schema) {
		return errors.Wrapf(ErrSchemaMismatch, "%v vs %v", d.Schema.Names(), other.Schema.Names())
	}
	for i := range d.Schema {
		if d.Schema[i] != other.Schema[i] {
			return errors.Wrapf(ErrSchemaMismatch, "field %d: %v vs %v", i, d.Schema[i], other.Schema[i])
		}
	}
	d.Records = append(d.Records, other.Records...)
	return nil
}

// Map returns record i keyed by field name.
func (d *Dataset) Map(i int) map[string]interface{} {
	m := make(map[string]interface{}, len(d.Schema))
	for j, f := range d.Schema {
		m[f.Name] = d.Records[i][j]
	}
	return m
}

// Equal reports whether d and other hold the same records. Times are compared
// to the second and floats within relative tolerance tol.
func (d *Dataset) Equal(other *Dataset, tol float64) error {
	if len(d.Schema) != len(other.Schema) {
		return errors.Errorf("schema length %d != %d", len(d.Schema), len(other.Schema))
	}
	for i := range d.Schema {
		if d.Schema[i] != other.Schema[i] {
			return errors.Errorf("field %d: %v != %v", i, d.Schema[i], other.Schema[i])
		}
	}
	if d.Len() != other.Len() {
		return errors.Errorf("record count %d != %d", d.Len(), other.Len())
	}
	for i, rec := range d.Records {
		for j, v := range rec {
			if !valuesEqual(v, other.Records[i][j], tol) {
				return errors.Errorf("record %d field '%s': %v != %v", i, d.Schema[j].Name, v, other.Records[i][j])
			}
		}
	}
	return nil
}

func valuesEqual(a, b interface{}, tol float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch at := a.(type) {
	case float64:
		bt, ok := b.(float64)
		if !ok {
			return false
		}
		if at == bt {
			return true
		}
		return math.Abs(at-bt) <= tol*math.Max(math.Abs(at), math.Abs(bt))
	case time.Time:
		bt, ok := b.(time.Time)
		if !ok {
			return false
		}
		return at.Truncate(time.Second).Equal(bt.Truncate(time.Second))
	default:
		return a == b
	}
}

// Coerce converts val to the Go type used for kind.
func Coerce(kind Kind, val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	switch kind {
	case String:
		return toString(val)
	case Int:
		return toInt64(val)
	case Float:
		return toFloat64(val)
	case Time:
		return toTime(val)
	}
	return nil, errors.Errorf("unknown kind %v", kind)
}

func toString(val interface{}) (string, error) {
	switch vt := val.(type) {
	case string:
		return vt, nil
	case []byte:
		return string(vt), nil
	default:
		return "", errors.Errorf("couldn't convert %v of %[1]T to string", vt)
	}
}

func toInt64(val interface{}) (int64, error) {
	switch vt := val.(type) {
	case uint:
		return int64(vt), nil
	case uint8:
		return int64(vt), nil
	case uint16:
		return int64(vt), nil
	case uint32:
		return int64(vt), nil
	case uint64:
		return int64(vt), nil
	case int:
		return int64(vt), nil
	case int8:
		return int64(vt), nil
	case int16:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case int64:
		return vt, nil
	case float64:
		if vt != math.Trunc(vt) {
			return 0, errors.Errorf("couldn't convert non-integral %v to int64", vt)
		}
		return int64(vt), nil
	case string:
		i, err := strconv.ParseInt(vt, 10, 64)
		return i, errors.Wrap(err, "parsing int")
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to int64", vt)
	}
}

func toFloat64(val interface{}) (float64, error) {
	switch vt := val.(type) {
	case float64:
		return vt, nil
	case float32:
		return float64(vt), nil
	case int:
		return float64(vt), nil
	case int64:
		return float64(vt), nil
	case int32:
		return float64(vt), nil
	case uint64:
		return float64(vt), nil
	case string:
		f, err := strconv.ParseFloat(vt, 64)
		return f, errors.Wrap(err, "parsing float")
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to float64", vt)
	}
}

func toTime(val interface{}) (time.Time, error) {
	switch vt := val.(type) {
	case time.Time:
		return vt.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, vt)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "parsing time")
		}
		return t.UTC(), nil
	case int64:
		return time.UnixMilli(vt).UTC(), nil
	default:
		return time.Time{}, errors.Errorf("couldn't convert %v of %[1]T to time", vt)
	}
}
