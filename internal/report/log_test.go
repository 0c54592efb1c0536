package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.json")
	s := NewLogStore(path)
	assert.Zero(t, s.Len())

	remoteID := 17
	id, err := s.Append(Incident{
		Type:        "Motion detected",
		Description: "Frame difference exceeded threshold (12000)",
		Timestamp:   "2026-03-01 12:00:00",
		RemoteID:    &remoteID,
	})
	require.NoError(t, err)
	assert.Zero(t, id, "local ids start at 0")

	id, err = s.Append(Incident{Type: "Vandalism", Description: "Broken window", Timestamp: "2026-03-01 12:05:00"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	// A fresh store sees the persisted log.
	reloaded := NewLogStore(path)
	all := reloaded.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Motion detected", all[0].Type)
	require.NotNil(t, all[0].RemoteID)
	assert.Equal(t, 17, *all[0].RemoteID)
	assert.Nil(t, all[1].RemoteID, "offline incidents carry no remote id")
}

func TestLogStoreMissingFile(t *testing.T) {
	s := NewLogStore(filepath.Join(t.TempDir(), "nope.json"))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.All())
}

func TestLogStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewLogStore(path)
	assert.Zero(t, s.Len(), "a corrupt log starts empty rather than failing startup")
}

func TestAppendSurvivesSaveFailure(t *testing.T) {
	s := NewLogStore(filepath.Join(t.TempDir(), "missing-dir", "incidents.json"))

	id, err := s.Append(Incident{Type: "Theft", Description: "x", Timestamp: "2026-03-01 12:00:00"})
	require.Error(t, err, "the directory does not exist")
	assert.Zero(t, id)
	assert.Equal(t, 1, s.Len(), "the in-memory record is kept")
}
