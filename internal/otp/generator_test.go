package otp

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var digits = regexp.MustCompile(`^[0-9]+$`)

func TestRandomGenerator_Format(t *testing.T) {
	g := NewRandomGenerator()
	for _, length := range []int{4, 6, 8} {
		for i := 0; i < 200; i++ {
			code := g.Code(length)
			assert.Len(t, code, length)
			assert.Regexp(t, digits, code)
		}
	}
}

func TestRandomGenerator_LeadingZeros(t *testing.T) {
	g := NewSeededGenerator(42)
	sawLeadingZero := false
	for i := 0; i < 2000 && !sawLeadingZero; i++ {
		sawLeadingZero = g.Code(DefaultCodeLength)[0] == '0'
	}
	assert.True(t, sawLeadingZero, "leading zeros must be possible")
}

func TestSeededGenerator_Reproducible(t *testing.T) {
	a, b := NewSeededGenerator(7), NewSeededGenerator(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Code(6), b.Code(6))
	}
}

func TestGeneratorFunc(t *testing.T) {
	g := GeneratorFunc(func(n int) string { return "000000"[:n] })
	assert.Equal(t, "0000", g.Code(4))
}
