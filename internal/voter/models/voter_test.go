package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportVersion_Before(t *testing.T) {
	tests := []struct {
		name  string
		a, b  ImportVersion
		older bool
	}{
		{"older year", ImportVersion{2024, 9}, ImportVersion{2025, 1}, true},
		{"same year lower sequence", ImportVersion{2025, 1}, ImportVersion{2025, 2}, true},
		{"equal", ImportVersion{2025, 2}, ImportVersion{2025, 2}, false},
		{"newer", ImportVersion{2025, 3}, ImportVersion{2025, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.older, tt.a.Before(tt.b))
		})
	}
}
