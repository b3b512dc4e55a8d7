package gen_test

import (
	"testing"
	"time"

	"github.com/pilosa/datapub/fake/gen"
)

func TestTime(t *testing.T) {
	g := gen.NewGenerator(7)
	start := time.Date(2018, 01, 01, 0, 0, 0, 0, time.Local)
	last := start
	for i := 0; i < 1000; i++ {
		tim := g.Time(start, time.Second)
		if tim.Before(last) {
			t.Fatalf("generated a time before the last time")
		}
		if tim.Sub(last) > time.Second {
			t.Fatalf("generated a time more than a second after the last one")
		}
		last = tim
	}
}

func TestIntFloatRanges(t *testing.T) {
	g := gen.NewGenerator(1)
	for i := 0; i < 10000; i++ {
		if v := g.Int(20, 80); v < 20 || v >= 80 {
			t.Fatalf("int out of range: %d", v)
		}
		if v := g.Float(10, 5000); v < 10 || v >= 5000 {
			t.Fatalf("float out of range: %v", v)
		}
	}
	if v := g.Int(5, 5); v != 5 {
		t.Fatalf("empty range should return min, got %d", v)
	}
}

func TestWeighted(t *testing.T) {
	g := gen.NewGenerator(3)
	weights := []float64{0.3, 0.4, 0.2, 0.05, 0.05}
	counts := make([]int, len(weights))
	n := 100000
	for i := 0; i < n; i++ {
		counts[g.Weighted(weights)]++
	}
	for i, w := range weights {
		got := float64(counts[i]) / float64(n)
		if got < w-0.02 || got > w+0.02 {
			t.Errorf("index %d: expected frequency near %v, got %v", i, w, got)
		}
	}
	if idx := g.Weighted([]float64{0, 0, 1}); idx != 2 {
		t.Errorf("zero weights should never be chosen, got %d", idx)
	}
}

func TestStep(t *testing.T) {
	g := gen.NewGenerator(5)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		tm := g.Step(from, to, time.Hour)
		if tm.Before(from) || tm.After(to) {
			t.Fatalf("time out of range: %v", tm)
		}
		if tm.Sub(from)%time.Hour != 0 {
			t.Fatalf("time not on an hour step: %v", tm)
		}
	}
}

func TestStringCardinality(t *testing.T) {
	g := gen.NewGenerator(11)
	seen := make(map[string]struct{})
	for i := 0; i < 5000; i++ {
		s := g.String(8, 10)
		if len(s) != 8 {
			t.Fatalf("unexpected length: %s", s)
		}
		seen[s] = struct{}{}
	}
	if len(seen) > 10 {
		t.Fatalf("expected at most 10 distinct strings, got %d", len(seen))
	}
}
