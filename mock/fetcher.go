package mock

import (
	"context"

	"github.com/pilosa/datapub"
)

// Fetcher returns canned datasets or errors per key.
type Fetcher struct {
	Data   map[string]*datapub.Dataset
	Errors map[string]error

	Fetched []string
}

// Fetch implements datapub.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, key string, limit int) (*datapub.Dataset, error) {
	f.Fetched = append(f.Fetched, key)
	if err := f.Errors[key]; err != nil {
		return nil, err
	}
	ds, ok := f.Data[key]
	if !ok {
		return nil, datapub.ErrNotExist
	}
	if limit > 0 && ds.Len() > limit {
		return &datapub.Dataset{Schema: ds.Schema, Records: ds.Records[:limit]}, nil
	}
	return ds, nil
}

// Source is a datapub.Source returning a fixed dataset or error.
type Source struct {
	Dataset *datapub.Dataset
	Err     error
}

// Produce implements datapub.Source.
func (s Source) Produce(ctx context.Context) (*datapub.Dataset, error) {
	return s.Dataset, s.Err
}
