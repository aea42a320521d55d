package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("trims and drops duplicates preserving order", func(t *testing.T) {
		got := DedupeAndTrim([]string{" role-a ", "role-b", "role-a", "role-c"})
		assert.Equal(t, []string{"role-a", "role-b", "role-c"}, got)
	})

	t.Run("drops empty and whitespace-only entries", func(t *testing.T) {
		got := DedupeAndTrim([]string{"", "  ", "role-a"})
		assert.Equal(t, []string{"role-a"}, got)
	})

	t.Run("empty input passes through", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim(nil))
	})
}
