package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterWritesAtOffsetsOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(10))

	w := NewWriter(f, 0)
	go w.Run()

	assert.True(t, w.Enqueue(5, []byte("world")))
	assert.True(t, w.Enqueue(0, []byte("hello")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(data))
}

func TestWriterEnqueueAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	w := NewWriter(f, 0)
	go w.Run()
	require.NoError(t, w.Close())

	assert.False(t, w.Enqueue(0, []byte("x")))
}

func TestWriterPropagatesWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close()) // closed handle: WriteAt must fail

	w := NewWriter(f, 0)
	go w.Run()
	w.Enqueue(0, []byte("x"))
	err = w.Close()
	assert.Error(t, err)
}
