package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("You are a certified medical coder.", "1h")
	require.Len(t, blocks, 1)
	assert.Equal(t, "You are a certified medical coder.", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}

func TestBuildCachedSystemBlocks_DefaultTTL(t *testing.T) {
	blocks := BuildCachedSystemBlocks("", "")
	require.Len(t, blocks, 1)
	assert.Equal(t, "", blocks[0].Text)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}
