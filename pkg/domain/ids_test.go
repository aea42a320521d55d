package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/pkg/domain"
	dErrors "gatekeeper/pkg/domain-errors"
)

func TestParseMemberID(t *testing.T) {
	t.Run("accepts opaque snowflakes", func(t *testing.T) {
		id, err := domain.ParseMemberID("190753919283200000")
		require.NoError(t, err)
		assert.Equal(t, "190753919283200000", id.String())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := domain.ParseMemberID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseGroupID(t *testing.T) {
	t.Run("accepts opaque snowflakes", func(t *testing.T) {
		id, err := domain.ParseGroupID("2001")
		require.NoError(t, err)
		assert.Equal(t, "2001", id.String())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := domain.ParseGroupID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
