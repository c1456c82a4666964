package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "my entry", "my entry"},
		{"strips tags", "<b>bold</b> move", "bold move"},
		{"drops scripts", "hi<script>alert(1)</script>", "hi"},
		{"keeps ampersand", "cats & dogs", "cats & dogs"},
		{"keeps lines", "line one\n  <i>line two</i>  ", "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "first second third", Flatten("<p>first</p><p>second</p>\n\nthird"))
}
