package datapub

import (
	"context"

	"github.com/pkg/errors"
)

// Transformer modifies a Dataset in place, typically adding derived fields.
type Transformer interface {
	Transform(ds *Dataset) error
}

// TransformerFunc can be wrapped around a function to make it implement the
// Transformer interface. Similar to http.HandlerFunc.
type TransformerFunc func(*Dataset) error

// Transform implements Transformer for TransformerFunc
func (t TransformerFunc) Transform(ds *Dataset) error {
	return t(ds)
}

// TransformSource is a Source which applies Transformers, in order, to the
// Dataset produced by another Source.
type TransformSource struct {
	Source       Source
	Transformers []Transformer
}

// NewTransformSource wraps src.
func NewTransformSource(src Source, ts ...Transformer) *TransformSource {
	return &TransformSource{Source: src, Transformers: ts}
}

// Produce implements Source.
func (t *TransformSource) Produce(ctx context.Context) (*Dataset, error) {
	ds, err := t.Source.Produce(ctx)
	if err != nil {
		return ds, err
	}
	for i, tr := range t.Transformers {
		if err := tr.Transform(ds); err != nil {
			return nil, errors.Wrapf(err, "transformer %d", i)
		}
	}
	return ds, nil
}

// KeyResults passes through the per-key results of the wrapped Source, if it
// has any.
func (t *TransformSource) KeyResults() []KeyResult {
	if kr, ok := t.Source.(interface{ KeyResults() []KeyResult }); ok {
		return kr.KeyResults()
	}
	return nil
}

// AddField appends a field to ds, computing its value for each record with
// fn.
func (d *Dataset) AddField(f Field, fn func(rec []interface{}) (interface{}, error)) error {
	if d.Schema.Index(f.Name) >= 0 {
		return errors.Errorf("field '%s' already exists", f.Name)
	}
	vals := make([]interface{}, len(d.Records))
	for i, rec := range d.Records {
		v, err := fn(rec)
		if err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if vals[i], err = Coerce(f.Kind, v); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
	}
	d.Schema = append(d.Schema[:len(d.Schema):len(d.Schema)], f)
	for i := range d.Records {
		d.Records[i] = append(d.Records[i], vals[i])
	}
	return nil
}
