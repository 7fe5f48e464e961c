package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecipient(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeRecipient("  A@Example.COM "))
	assert.Equal(t, "tom&jerry@example.com", NormalizeRecipient("Tom&Jerry@example.com"))
	assert.Equal(t, "o'neil@example.com", NormalizeRecipient(" o'neil@example.com"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "O'Brien", SanitizeName("  O'Brien "))
	assert.Equal(t, "Ada Lovelace", SanitizeName("Ada\r\n Lovelace"))
}

func TestContainsSuspicious(t *testing.T) {
	testCases := []struct {
		in   string
		want bool
	}{
		{"Ada", false},
		{"Lovelace-Byron", false},
		{"<b>Ada</b>", true},
		{"${name}", true},
		{"x onError=y", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ContainsSuspicious(tc.in))
		})
	}
}
