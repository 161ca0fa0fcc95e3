package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveDeterministic(t *testing.T) {
	a := Derive("NOTE1", "Buy milk")
	b := Derive("NOTE1", "Buy milk")
	assert.Equal(t, a, b)
}

func TestDeriveFormat(t *testing.T) {
	id := Derive("NOTE1", "Buy milk")
	parts := strings.SplitN(id, ":", 2)
	assert.Equal(t, "NOTE1", parts[0])
	assert.Len(t, parts[1], 8)
}

func TestDeriveIgnoresPosition(t *testing.T) {
	// Identity carries no line information at all; the same text hashes
	// identically no matter where it sits in the note.
	assert.Equal(t, Derive("N", "Write report"), Derive("N", "Write report"))
}

func TestDeriveNormalization(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"completion toggle", "- [ ] Buy milk", "- [x] Buy milk"},
		{"marker variants", "- [ ] Buy milk", "* [ ] Buy milk"},
		{"marker vs bare text", "- [ ] Buy milk", "Buy milk"},
		{"surrounding whitespace", "  Buy milk  ", "Buy milk"},
		{"interior whitespace", "Buy  \t milk", "Buy milk"},
		{"case folding", "BUY MILK", "buy milk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Derive("N", tt.a), Derive("N", tt.b))
		})
	}
}

func TestDeriveDistinguishes(t *testing.T) {
	t.Run("different text", func(t *testing.T) {
		assert.NotEqual(t, Derive("N", "Buy milk"), Derive("N", "Buy bread"))
	})
	t.Run("different container", func(t *testing.T) {
		assert.NotEqual(t, Derive("N1", "Buy milk"), Derive("N2", "Buy milk"))
	})
	t.Run("uppercase X in text body is preserved as content", func(t *testing.T) {
		assert.NotEqual(t, Derive("N", "task x"), Derive("N", "task y"))
	})
}

func TestNormalized(t *testing.T) {
	assert.Equal(t, "buy milk", Normalized("- [x]  Buy   Milk "))
	assert.Equal(t, "buy milk", Normalized("Buy milk"))
}
