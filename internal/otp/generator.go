package otp

import (
	"math/rand/v2"
	"sync"
)

// Generator produces numeric codes of the requested length. Every digit is
// drawn independently, so leading zeros are as likely as any other digit.
type Generator interface {
	Code(length int) string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(length int) string

func (f GeneratorFunc) Code(length int) string {
	return f(length)
}

// RandomGenerator draws digits from math/rand/v2. Codes are not a security
// boundary here, so a fast non-cryptographic source is enough.
type RandomGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomGenerator uses the runtime's randomly seeded global source.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// NewSeededGenerator returns a reproducible generator for tests and demos.
func NewSeededGenerator(seed uint64) *RandomGenerator {
	return &RandomGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *RandomGenerator) Code(length int) string {
	buf := make([]byte, length)

	if g.rng == nil {
		for i := range buf {
			buf[i] = '0' + byte(rand.IntN(10))
		}
		return string(buf)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range buf {
		buf[i] = '0' + byte(g.rng.IntN(10))
	}
	return string(buf)
}
