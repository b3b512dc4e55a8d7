package fake

import (
	"context"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/fake/gen"
	"github.com/pkg/errors"
)

// Source is a datapub.Source which generates N records from a Spec. Using
// the same seed gives the same records on a given version of Go.
type Source struct {
	Spec Spec
	N    int
	Seed int64
}

// NewSource returns a Source generating n records from spec. A negative seed
// means seed from the current time.
func NewSource(spec Spec, n int, seed int64) *Source {
	return &Source{Spec: spec, N: n, Seed: seed}
}

// Produce implements datapub.Source.
func (s *Source) Produce(ctx context.Context) (*datapub.Dataset, error) {
	if s.N < 0 {
		return nil, errors.Errorf("negative record count %d", s.N)
	}
	if err := s.Spec.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid spec")
	}
	seed := s.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	g := newRecordGenerator(s.Spec, seed)
	ds := datapub.NewDataset(s.Spec.Schema())
	ds.Records = make([][]interface{}, 0, s.N)
	for i := 0; i < s.N; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := ds.Append(g.record(i)...); err != nil {
			return nil, errors.Wrapf(err, "record %d", i)
		}
	}
	return ds, nil
}

type recordGenerator struct {
	spec  Spec
	g     *gen.Generator
	faker *gofakeit.Faker
	vals  []interface{}
}

func newRecordGenerator(spec Spec, seed int64) *recordGenerator {
	return &recordGenerator{
		spec:  spec,
		g:     gen.NewGenerator(seed),
		faker: gofakeit.New(seed),
		vals:  make([]interface{}, len(spec.Fields)),
	}
}

func (r *recordGenerator) record(i int) []interface{} {
	for j, f := range r.spec.Fields {
		r.vals[j] = r.value(f, i)
	}
	return r.vals
}

func (r *recordGenerator) value(f FieldSpec, i int) interface{} {
	switch f.Dist {
	case Sequence:
		return f.Start + int64(i)
	case UniformInt:
		return r.g.Int(int64(f.Min), int64(f.Max))
	case UniformFloat:
		return r.g.Float(f.Min, f.Max)
	case WeightedChoice:
		weights := f.Weights
		if len(weights) == 0 {
			weights = make([]float64, len(f.Choices))
			for k := range weights {
				weights[k] = 1
			}
		}
		return f.Choices[r.g.Weighted(weights)]
	case TimeRange:
		return r.g.Step(f.From, f.To, f.Step.Duration).UTC()
	case TimeWalk:
		return r.g.Time(f.From, f.Step.Duration).UTC()
	case Name:
		return r.faker.Name()
	case Address:
		return strings.ReplaceAll(r.faker.Address().Address, "\n", " ")
	case ZipfString:
		return r.g.String(f.Length, f.Cardinality)
	case Latitude:
		return r.faker.Latitude()
	case Longitude:
		return r.faker.Longitude()
	}
	return nil
}
