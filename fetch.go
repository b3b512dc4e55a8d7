package datapub

import (
	"context"

	"github.com/pkg/errors"
)

// FetchSource is a Source which issues one Fetch per key and concatenates the
// results. A key whose fetch fails for any reason is logged and skipped; only
// a run in which no key produced a record fails.
type FetchSource struct {
	Fetcher Fetcher
	Keys    []string
	Limit   int
	Log     Logger
	Stats   Statter

	results []KeyResult
}

// NewFetchSource returns a FetchSource over keys.
func NewFetchSource(f Fetcher, keys []string, limit int) *FetchSource {
	return &FetchSource{
		Fetcher: f,
		Keys:    keys,
		Limit:   limit,
		Log:     NopLogger{},
		Stats:   NopStatter{},
	}
}

// KeyResults returns the per-key outcomes of the last Produce.
func (f *FetchSource) KeyResults() []KeyResult {
	return f.results
}

// Produce fetches every key in order.
func (f *FetchSource) Produce(ctx context.Context) (*Dataset, error) {
	f.results = make([]KeyResult, 0, len(f.Keys))
	var ds *Dataset
	for _, key := range f.Keys {
		f.Log.Printf("Fetching records for %s...", key)
		part, err := f.Fetcher.Fetch(ctx, key, f.Limit)
		if err == nil && part.Len() > 0 {
			if ds.Len() == 0 {
				ds = NewDataset(part.Schema)
			}
			err = ds.Concat(part)
		}
		if err != nil {
			switch errors.Cause(err) {
			case ErrForbidden:
				f.Log.Printf("Forbidden error for %s: %v", key, err)
			case ErrRateLimited:
				f.Log.Printf("Rate limited fetching %s: %v", key, err)
			case ErrSchemaMismatch:
				f.Log.Printf("Schema mismatch for %s, dropping its records: %v", key, err)
			default:
				f.Log.Printf("Error fetching records for %s: %v", key, err)
			}
			f.Stats.Count("fetch.skipped", 1, 1)
			f.results = append(f.results, KeyResult{Key: key, Outcome: OutcomeSkipped, Err: err})
			continue
		}
		f.Stats.Count("fetch.records", int64(part.Len()), 1)
		f.results = append(f.results, KeyResult{Key: key, Records: part.Len(), Outcome: OutcomeOK})
		f.Log.Printf("Successfully fetched %d records for %s.", part.Len(), key)
	}
	if ds.Len() == 0 {
		if len(f.Keys) > 0 {
			return nil, errors.Wrapf(ErrEmptyDataset, "fetching %d keys", len(f.Keys))
		}
		return NewDataset(nil), nil
	}
	return ds, nil
}
