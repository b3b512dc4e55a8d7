package test

import (
	"reflect"
	"testing"
	"time"

	"github.com/pilosa/datapub"
)

// MustBe uses reflect.DeepEqual to assert that thing1 and thing2 are equal, and
// fails otherwise.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t *testing.T, err error, ctx string) {
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// SampleDataset returns a small dataset with one field of every kind,
// including a record of nulls and values that need quoting in text formats.
func SampleDataset(t *testing.T) *datapub.Dataset {
	t.Helper()
	ds := datapub.NewDataset(datapub.Schema{
		{Name: "id", Kind: datapub.Int},
		{Name: "name", Kind: datapub.String},
		{Name: "amount", Kind: datapub.Float},
		{Name: "at", Kind: datapub.Time},
	})
	recs := [][]interface{}{
		{int64(1), "Alice Smith", 12.5, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{int64(2), "Bob, \"Jr\"", 4999.99, time.Date(2024, 12, 30, 23, 0, 0, 0, time.UTC)},
		{int64(-3), "line\nbreak", 0.001, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{int64(4), nil, nil, nil},
	}
	for i, rec := range recs {
		if err := ds.Append(rec...); err != nil {
			t.Fatalf("appending record %d: %v", i, err)
		}
	}
	return ds
}
