// Package transactions publishes synthetic bank transactions.
package transactions

import (
	"context"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/fake"
	"github.com/pilosa/datapub/geohash"
	"github.com/pilosa/datapub/usecase/publish"
	"github.com/pkg/errors"
)

// Main holds the options for generating transactions and publishing them.
type Main struct {
	publish.Main `flag:"!embed"`

	Num              int    `help:"Number of records to generate."`
	Seed             int64  `help:"Random seed for generating data. -1 will use current nanosecond."`
	SpecFile         string `help:"TOML file describing the fields to generate. Empty means the default transaction fields."`
	GeohashPrefix    string `help:"Fields <prefix>latitude and <prefix>longitude, when generated, are hashed into <prefix>geohash."`
	GeohashPrecision uint   `help:"Number of characters in generated geohashes."`
}

// NewMain returns a new Main.
func NewMain() *Main {
	return &Main{
		Main:             *publish.NewMain("transaction", "transactions"),
		Num:              3000,
		Seed:             -1,
		GeohashPrefix:    "branch_",
		GeohashPrecision: 6,
	}
}

// Run generates the transactions and publishes them.
func (m *Main) Run() error {
	if err := m.Setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	src, err := m.Source()
	if err != nil {
		return err
	}
	_, err = m.Publish(context.Background(), src)
	return err
}

// Source returns the configured synthetic Source.
func (m *Main) Source() (datapub.Source, error) {
	if m.Num < 0 {
		return nil, errors.Errorf("num must not be negative, got %d", m.Num)
	}
	spec := fake.TransactionSpec()
	if m.SpecFile != "" {
		var err error
		spec, err = fake.LoadSpec(m.SpecFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading spec")
		}
	}
	var src datapub.Source = fake.NewSource(spec, m.Num, m.Seed)
	schema := spec.Schema()
	if schema.Index(m.GeohashPrefix+"latitude") >= 0 && schema.Index(m.GeohashPrefix+"longitude") >= 0 {
		m.Log().Debugf("adding %sgeohash field", m.GeohashPrefix)
		src = datapub.NewTransformSource(src, geohash.NewTransformer(m.GeohashPrefix, m.GeohashPrecision))
	}
	return src, nil
}
