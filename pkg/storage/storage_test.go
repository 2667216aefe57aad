package storage

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadSnapshotRoundTrip(t *testing.T) {
	s, err := New(&Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.HasSnapshot())

	payload := []byte("a fake cbor-encoded blockchain snapshot")
	require.NoError(t, s.SaveSnapshot(payload))

	require.True(t, s.HasSnapshot())

	loaded, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, payload, loaded)
}

func TestLoadSnapshotWithoutSaveReturnsKeyNotFound(t *testing.T) {
	s, err := New(&Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadSnapshot()
	require.True(t, errors.Is(err, badger.ErrKeyNotFound))
}

func TestSaveSnapshotOverwritesPrior(t *testing.T) {
	s, err := New(&Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveSnapshot([]byte("first")))
	require.NoError(t, s.SaveSnapshot([]byte("second")))

	loaded, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), loaded)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "./data", cfg.DataDir)
}
