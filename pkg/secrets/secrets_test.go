package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "geoseal/pkg/domain-errors"
)

func TestGenerate(t *testing.T) {
	first, err := Generate()
	require.NoError(t, err)
	second, err := Generate()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("operator-token")
	require.NoError(t, err)
	assert.NotEqual(t, "operator-token", hash)

	require.NoError(t, Verify("operator-token", hash))

	err = Verify("wrong-token", hash)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
}
