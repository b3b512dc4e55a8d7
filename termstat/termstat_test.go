package termstat_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/pilosa/datapub/termstat"
)

func TestCollector(t *testing.T) {
	buf := &bytes.Buffer{}
	c := termstat.NewCollector(buf)
	if err := c.Write(); err != nil || buf.Len() != 0 {
		t.Fatalf("expected no output before any stat, got %q, %v", buf.String(), err)
	}
	c.Count("records.produced", 5, 1)
	c.Count("records.produced", 2, 1)
	c.Gauge("artifacts", 3.7, 1)
	c.Timing("run", 1500*time.Millisecond, 1)

	if n := c.Get("records.produced"); n != 7 {
		t.Fatalf("expected 7 records, got %d", n)
	}
	if n := c.Get("nope"); n != 0 {
		t.Fatalf("unknown stat should be 0, got %d", n)
	}
	if err := c.Write(); err != nil {
		t.Fatalf("writing: %v", err)
	}
	if exp := "records.produced: 7 artifacts: 3 run: 1.5s\n"; buf.String() != exp {
		t.Fatalf("unexpected output\nexp: %q\ngot: %q", exp, buf.String())
	}
}
