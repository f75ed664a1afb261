package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptbase/cryptbase/formats/varint"
)

var testData = []byte("The quick brown fox jumps over the lazy dog")

func TestDataHandling(t *testing.T) {
	t.Parallel()

	c1 := New(testData)
	assert.Equal(t, testData, c1.CompileData())

	c2 := New()
	for i := range testData {
		c2.Append(testData[i : i+1])
	}
	assert.Equal(t, len(testData), c2.Length())
	assert.Equal(t, testData, c2.CompileData())
	// compiling is idempotent
	assert.Equal(t, testData, c2.CompileData())

	c2.Reset()
	assert.Equal(t, 0, c2.Length())
	assert.Empty(t, New().CompileData())
}

func TestBlockFraming(t *testing.T) {
	t.Parallel()

	c := New()
	c.AppendNumber(7)
	c.AppendAsBlock(testData)

	data := c.CompileData()
	id, n, err := varint.Unpack64(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	block, _, err := varint.GetNextBlock(data[n:])
	require.NoError(t, err)
	assert.Equal(t, testData, block)
}
