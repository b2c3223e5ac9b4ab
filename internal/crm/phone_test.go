package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"whatsapp prefix with plus", "whatsapp:+573001234567", "+573001234567"},
		{"bare ten digits gets country code", "3001234567", "+523001234567"},
		{"formatted with plus", "+52 300 123 4567", "+523001234567"},
		{"eleven digits without plus", "15512345678", "+15512345678"},
		{"empty", "", ""},
		{"no digits", "whatsapp:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.phone, "+52"))
		})
	}
}

func TestNormalizePhoneCanonicalFixedPoint(t *testing.T) {
	// Normalizing an already-canonical number must not change it, so a
	// search after a write always finds the same remote record.
	forms := []string{"whatsapp:+573001234567", "3001234567", "+52 300 123 4567"}
	for _, f := range forms {
		canonical := NormalizePhone(f, "+52")
		assert.Equal(t, canonical, NormalizePhone(canonical, "+52"))
	}
}
