package fake

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// Dist names a value distribution for a generated field.
type Dist string

const (
	// Sequence counts up from Start, one per record.
	Sequence Dist = "sequence"
	// UniformInt picks integers in [Min, Max).
	UniformInt Dist = "uniform_int"
	// UniformFloat picks floats in [Min, Max).
	UniformFloat Dist = "uniform_float"
	// WeightedChoice picks one of Choices with probability proportional to
	// the matching entry of Weights. Missing weights mean equal weights.
	WeightedChoice Dist = "weighted_choice"
	// TimeRange picks a whole number of Steps after From, not after To.
	TimeRange Dist = "time_range"
	// TimeWalk starts at From and moves forward by less than Step each
	// record. Fields walking from the same From share one walk.
	TimeWalk Dist = "time_walk"
	Name     Dist = "name"
	Address  Dist = "address"
	// ZipfString picks from Cardinality distinct strings of Length
	// characters with a zipf distribution.
	ZipfString Dist = "zipf_string"
	Latitude   Dist = "latitude"
	Longitude  Dist = "longitude"
)

// Duration is a time.Duration which decodes from strings like "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// FieldSpec describes how to generate one field. Only the parameters
// relevant to Dist are read.
type FieldSpec struct {
	Name string `toml:"name"`
	Dist Dist   `toml:"dist"`

	Start       int64     `toml:"start"`
	Min         float64   `toml:"min"`
	Max         float64   `toml:"max"`
	Choices     []string  `toml:"choices"`
	Weights     []float64 `toml:"weights"`
	From        time.Time `toml:"from"`
	To          time.Time `toml:"to"`
	Step        Duration  `toml:"step"`
	Length      int       `toml:"length"`
	Cardinality int       `toml:"cardinality"`
}

// Kind is the kind of value the field's distribution produces.
func (f FieldSpec) Kind() datapub.Kind {
	switch f.Dist {
	case Sequence, UniformInt:
		return datapub.Int
	case UniformFloat, Latitude, Longitude:
		return datapub.Float
	case TimeRange, TimeWalk:
		return datapub.Time
	default:
		return datapub.String
	}
}

func (f FieldSpec) validate() error {
	if f.Name == "" {
		return errors.New("field has no name")
	}
	switch f.Dist {
	case Sequence, Name, Address, Latitude, Longitude:
	case UniformInt, UniformFloat:
		if f.Max < f.Min {
			return errors.Errorf("max %v is less than min %v", f.Max, f.Min)
		}
	case WeightedChoice:
		if len(f.Choices) == 0 {
			return errors.New("no choices")
		}
		if len(f.Weights) > 0 && len(f.Weights) != len(f.Choices) {
			return errors.Errorf("%d weights for %d choices", len(f.Weights), len(f.Choices))
		}
		for _, w := range f.Weights {
			if w < 0 {
				return errors.Errorf("negative weight %v", w)
			}
		}
	case TimeRange:
		if f.To.Before(f.From) {
			return errors.New("'to' is before 'from'")
		}
		if f.Step.Duration <= 0 {
			return errors.New("step must be positive")
		}
	case TimeWalk:
		if f.Step.Duration <= 0 {
			return errors.New("step must be positive")
		}
	case ZipfString:
		if f.Length <= 0 || f.Cardinality <= 0 {
			return errors.New("length and cardinality must be positive")
		}
	default:
		return errors.Errorf("unknown distribution '%s'", f.Dist)
	}
	return nil
}

// Spec is the ordered set of fields a Source generates.
type Spec struct {
	Fields []FieldSpec `toml:"field"`
}

// Schema is the dataset schema records generated from s have.
func (s Spec) Schema() datapub.Schema {
	schema := make(datapub.Schema, len(s.Fields))
	for i, f := range s.Fields {
		schema[i] = datapub.Field{Name: f.Name, Kind: f.Kind()}
	}
	return schema
}

// Validate checks every field's parameters and that names are unique.
func (s Spec) Validate() error {
	if len(s.Fields) == 0 {
		return errors.New("spec has no fields")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if err := f.validate(); err != nil {
			return errors.Wrapf(err, "field %d '%s'", i, f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return errors.Errorf("duplicate field '%s'", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// LoadSpec reads a Spec from a TOML file with one [[field]] table per field.
func LoadSpec(path string) (Spec, error) {
	var s Spec
	b, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrap(err, "reading spec file")
	}
	if _, err := toml.Decode(string(b), &s); err != nil {
		return s, errors.Wrapf(err, "decoding %s", path)
	}
	return s, errors.Wrapf(s.Validate(), "validating %s", path)
}

// TransactionSpec is the default spec: synthetic bank transactions over
// 2024.
func TransactionSpec() Spec {
	return Spec{Fields: []FieldSpec{
		{Name: "transaction_id", Dist: Sequence, Start: 1},
		{Name: "user_id", Dist: UniformInt, Min: 1, Max: 501},
		{Name: "name", Dist: Name},
		{Name: "address", Dist: Address},
		{Name: "age", Dist: UniformInt, Min: 20, Max: 80},
		{
			Name: "transaction_date",
			Dist: TimeRange,
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			Step: Duration{time.Hour},
		},
		{
			Name:    "transaction_type",
			Dist:    WeightedChoice,
			Choices: []string{"Deposit", "Withdrawal", "Transfer", "Loan Repayment", "Interest Credit"},
			Weights: []float64{0.3, 0.4, 0.2, 0.05, 0.05},
		},
		{Name: "amount", Dist: UniformFloat, Min: 10, Max: 5000},
		{Name: "balance_after", Dist: UniformFloat, Min: 1000, Max: 100000},
	}}
}
