package gen

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"hash"
	"math/rand"
	"time"
)

// Generator produces pseudo-random values. It is not safe for concurrent use.
type Generator struct {
	r     *rand.Rand
	zs    map[int]*rand.Zipf
	times map[time.Time]time.Duration
	hsh   hash.Hash
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	r := rand.New(rand.NewSource(seed))
	return &Generator{
		r:     r,
		zs:    make(map[int]*rand.Zipf),
		times: make(map[time.Time]time.Duration),
		hsh:   sha1.New(),
	}
}

// String returns a zipf distributed string drawn from cardinality distinct
// values, each length characters long (at most 32).
func (g *Generator) String(length, cardinality int) string {
	if length > 32 {
		length = 32
	}

	val := g.Uint64(cardinality)

	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, val)
	_, _ = g.hsh.Write(b) // no need to check err
	hashed := g.hsh.Sum(nil)
	g.hsh.Reset()
	return base32.StdEncoding.EncodeToString(hashed)[:length]
}

// Uint64 returns a zipf distributed value in [0, cardinality).
func (g *Generator) Uint64(cardinality int) uint64 {
	z, ok := g.zs[cardinality]
	if !ok {
		// We subtract one from cardinality because rand.Zipf generates values
		// in [0, imax], but the expectation from funcs like rand.Intn is to
		// generate values in [0, n). Also since we can generate 0, this means
		// that the actual cardinality of the values we can return matches
		// "cardinality".
		imax := uint64(cardinality) - 1
		v := 0.05 * float64(imax)
		if v < 1.0 {
			v = 1.0
		}
		z = rand.NewZipf(g.r, 1.1, v, imax)
		g.zs[cardinality] = z
	}
	return z.Uint64()
}

// Time returns a time after from which increases monotonically with each
// call for the same from, by at most maxDelta per call.
func (g *Generator) Time(from time.Time, maxDelta time.Duration) time.Time {
	delta, ok := g.times[from]
	if !ok {
		delta = time.Duration(g.r.Uint64() % uint64(maxDelta))
		g.times[from] = delta
	} else {
		delta += time.Duration(g.r.Uint64() % uint64(maxDelta))
		g.times[from] = delta
	}
	return from.Add(delta)
}

// Int returns a uniform value in [min, max).
func (g *Generator) Int(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + g.r.Int63n(max-min)
}

// Float returns a uniform value in [min, max).
func (g *Generator) Float(min, max float64) float64 {
	return min + g.r.Float64()*(max-min)
}

// Weighted returns an index into weights, chosen with probability
// proportional to its weight.
func (g *Generator) Weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	x := g.r.Float64() * total
	for i, w := range weights {
		if x < w {
			return i
		}
		x -= w
	}
	return len(weights) - 1
}

// Step returns from plus a uniformly chosen whole number of steps, not after
// to.
func (g *Generator) Step(from, to time.Time, step time.Duration) time.Time {
	if step <= 0 || !to.After(from) {
		return from
	}
	n := int64(to.Sub(from)/step) + 1
	return from.Add(time.Duration(g.r.Int63n(n)) * step)
}
