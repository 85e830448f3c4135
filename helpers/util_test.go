package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("ah/producten/zuivel", "/", 2)
	require.NoError(t, err)
	assert.Equal(t, "zuivel", part)

	_, err = GetSplitPart("ah/producten", "/", 5)
	assert.Error(t, err)
}
