package fake_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pilosa/datapub"
	"github.com/pilosa/datapub/fake"
	"github.com/pilosa/datapub/test"
)

func TestSourceCount(t *testing.T) {
	for _, n := range []int{0, 1, 5, 3000} {
		src := fake.NewSource(fake.TransactionSpec(), n, 42)
		ds, err := src.Produce(context.Background())
		test.ErrNil(t, err, "producing")
		if ds.Len() != n {
			t.Fatalf("expected %d records, got %d", n, ds.Len())
		}
		for i, rec := range ds.Records {
			for j, v := range rec {
				if v == nil {
					t.Fatalf("record %d field %s is empty", i, ds.Schema[j].Name)
				}
			}
		}
	}
}

func TestSourceTransactions(t *testing.T) {
	ds, err := fake.NewSource(fake.TransactionSpec(), 2000, 1).Produce(context.Background())
	test.ErrNil(t, err, "producing")
	test.MustBe(t, ds.Schema.Names(), []string{
		"transaction_id", "user_id", "name", "address", "age",
		"transaction_date", "transaction_type", "amount", "balance_after",
	})

	types := map[string]bool{"Deposit": true, "Withdrawal": true, "Transfer": true, "Loan Repayment": true, "Interest Credit": true}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < ds.Len(); i++ {
		m := ds.Map(i)
		if id := m["transaction_id"].(int64); id != int64(i+1) {
			t.Fatalf("record %d has transaction_id %d", i, id)
		}
		if u := m["user_id"].(int64); u < 1 || u > 500 {
			t.Fatalf("user_id out of range: %d", u)
		}
		if a := m["age"].(int64); a < 20 || a > 79 {
			t.Fatalf("age out of range: %d", a)
		}
		if amt := m["amount"].(float64); amt < 10 || amt >= 5000 {
			t.Fatalf("amount out of range: %v", amt)
		}
		if bal := m["balance_after"].(float64); bal < 1000 || bal >= 100000 {
			t.Fatalf("balance_after out of range: %v", bal)
		}
		if !types[m["transaction_type"].(string)] {
			t.Fatalf("unexpected transaction type %v", m["transaction_type"])
		}
		tm := m["transaction_date"].(time.Time)
		if tm.Before(from) || tm.After(to) || tm.Minute() != 0 || tm.Second() != 0 {
			t.Fatalf("transaction_date not an hour in range: %v", tm)
		}
		if m["name"].(string) == "" || m["address"].(string) == "" {
			t.Fatalf("record %d has an empty name or address", i)
		}
	}
}

func TestSourceSeed(t *testing.T) {
	a, err := fake.NewSource(fake.TransactionSpec(), 50, 9).Produce(context.Background())
	test.ErrNil(t, err, "producing a")
	b, err := fake.NewSource(fake.TransactionSpec(), 50, 9).Produce(context.Background())
	test.ErrNil(t, err, "producing b")
	if err := a.Equal(b, 0); err != nil {
		t.Fatalf("same seed gave different data: %v", err)
	}
	c, err := fake.NewSource(fake.TransactionSpec(), 50, 10).Produce(context.Background())
	test.ErrNil(t, err, "producing c")
	if err := a.Equal(c, 0); err == nil {
		t.Fatalf("different seeds gave identical data")
	}
}

func TestSourceInvalid(t *testing.T) {
	tests := []struct {
		name string
		spec fake.Spec
		n    int
	}{
		{name: "negative", spec: fake.TransactionSpec(), n: -1},
		{name: "empty spec", spec: fake.Spec{}, n: 1},
		{name: "unknown dist", spec: fake.Spec{Fields: []fake.FieldSpec{{Name: "x", Dist: "gaussian"}}}, n: 1},
		{name: "weights mismatch", spec: fake.Spec{Fields: []fake.FieldSpec{{Name: "x", Dist: fake.WeightedChoice, Choices: []string{"a"}, Weights: []float64{1, 2}}}}, n: 1},
		{name: "walk without step", spec: fake.Spec{Fields: []fake.FieldSpec{{Name: "x", Dist: fake.TimeWalk}}}, n: 1},
		{name: "duplicate", spec: fake.Spec{Fields: []fake.FieldSpec{{Name: "x", Dist: fake.Name}, {Name: "x", Dist: fake.Address}}}, n: 1},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			if _, err := fake.NewSource(tst.spec, tst.n, 1).Produce(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.toml")
	err := os.WriteFile(path, []byte(`
[[field]]
name = "branch"
dist = "zipf_string"
length = 6
cardinality = 20

[[field]]
name = "branch_latitude"
dist = "latitude"

[[field]]
name = "branch_longitude"
dist = "longitude"

[[field]]
name = "opened"
dist = "time_range"
from = 2023-01-01T00:00:00Z
to = 2023-02-01T00:00:00Z
step = "24h"

[[field]]
name = "tier"
dist = "weighted_choice"
choices = ["gold", "silver"]
`), 0644)
	test.ErrNil(t, err, "writing spec")

	spec, err := fake.LoadSpec(path)
	test.ErrNil(t, err, "loading spec")
	test.MustBe(t, spec.Schema(), datapub.Schema{
		{Name: "branch", Kind: datapub.String},
		{Name: "branch_latitude", Kind: datapub.Float},
		{Name: "branch_longitude", Kind: datapub.Float},
		{Name: "opened", Kind: datapub.Time},
		{Name: "tier", Kind: datapub.String},
	})
	test.MustBe(t, spec.Fields[3].Step.Duration, 24*time.Hour)

	ds, err := fake.NewSource(spec, 100, 3).Produce(context.Background())
	test.ErrNil(t, err, "producing")
	for i := 0; i < ds.Len(); i++ {
		m := ds.Map(i)
		if len(m["branch"].(string)) != 6 {
			t.Fatalf("unexpected branch %v", m["branch"])
		}
		if lat := m["branch_latitude"].(float64); lat < -90 || lat > 90 {
			t.Fatalf("latitude out of range: %v", lat)
		}
		if tier := m["tier"].(string); tier != "gold" && tier != "silver" {
			t.Fatalf("unexpected tier %s", tier)
		}
	}
}

func TestLoadSpecInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.toml")
	err := os.WriteFile(path, []byte(`
[[field]]
name = "n"
dist = "uniform_int"
min = 10
max = 1
`), 0644)
	test.ErrNil(t, err, "writing spec")
	if _, err := fake.LoadSpec(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := fake.LoadSpec(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSourceTimeWalk(t *testing.T) {
	from := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	spec := fake.Spec{Fields: []fake.FieldSpec{
		{Name: "seen_at", Dist: fake.TimeWalk, From: from, Step: fake.Duration{Duration: time.Minute}},
	}}
	test.MustBe(t, spec.Schema(), datapub.Schema{{Name: "seen_at", Kind: datapub.Time}})

	ds, err := fake.NewSource(spec, 500, 4).Produce(context.Background())
	test.ErrNil(t, err, "producing")
	last := from
	for i := 0; i < ds.Len(); i++ {
		tm := ds.Records[i][0].(time.Time)
		if tm.Before(last) {
			t.Fatalf("record %d at %v is before the previous record at %v", i, tm, last)
		}
		if tm.Sub(last) >= time.Minute {
			t.Fatalf("record %d moved %v, more than a step", i, tm.Sub(last))
		}
		last = tm
	}
}
