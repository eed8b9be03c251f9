package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memorykeep/pkg/memorykeep"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir())
	require.NoError(t, err)

	return s
}

func fixedClock(stamps ...string) func() time.Time {
	index := 0
	return func() time.Time {
		stamp := stamps[index%len(stamps)]
		index++
		parsed, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			panic(err)
		}
		return parsed
	}
}

func TestAppendRawWritesTimestampedLines(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.now = fixedClock("2026-08-26T10:00:00Z", "2026-08-26T10:01:00Z")

	require.NoError(t, s.Append("key-1", "experience", json.RawMessage(`"hello"`)))
	require.NoError(t, s.Append("key-1", "experience", json.RawMessage(`"world"`)))

	payload, err := s.Read("key-1", "experience")
	require.NoError(t, err)
	require.Equal(t, memorykeep.FormatRaw, payload.Format)
	require.Equal(t,
		"[2026-08-26T10:00:00Z] hello\n[2026-08-26T10:01:00Z] world\n",
		payload.Text,
	)
}

func TestAppendStructuredKeepsOrderAndStampsEntries(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	s.now = fixedClock("2026-08-26T10:00:00Z", "2026-08-26T10:01:00Z")

	require.NoError(t, s.Append("key-1", "core", json.RawMessage(`{"fact":"x"}`)))
	require.NoError(t, s.Append("key-1", "core", json.RawMessage(`{"fact":"x"}`)))

	payload, err := s.Read("key-1", "core")
	require.NoError(t, err)
	require.Equal(t, memorykeep.FormatStructured, payload.Format)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(payload.JSON, &records))
	require.Len(t, records, 2)
	require.Equal(t, "x", records[0]["fact"])
	require.Equal(t, "x", records[1]["fact"])
	require.Equal(t, "2026-08-26T10:00:00Z", records[0]["timestamp"])
	require.Equal(t, "2026-08-26T10:01:00Z", records[1]["timestamp"])
}

func TestFileExtensionLayout(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Append("key-1", "experience", json.RawMessage(`"raw"`)))
	require.NoError(t, s.Append("key-1", "notebook", json.RawMessage(`"raw"`)))
	require.NoError(t, s.Append("key-1", "core", json.RawMessage(`{"a":1}`)))

	// "experience" keeps its historical .log extension; other raw
	// categories use .txt and structured categories .json.
	require.FileExists(t, filepath.Join(s.baseDir, "key-1", "experience.log"))
	require.FileExists(t, filepath.Join(s.baseDir, "key-1", "notebook.txt"))
	require.FileExists(t, filepath.Join(s.baseDir, "key-1", "core.json"))
}

func TestReadPrefersStructuredFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Append("key-1", "notebook", json.RawMessage(`"raw line"`)))
	require.NoError(t, s.Append("key-1", "notebook", json.RawMessage(`{"fact":"x"}`)))

	payload, err := s.Read("key-1", "notebook")
	require.NoError(t, err)
	require.Equal(t, memorykeep.FormatStructured, payload.Format)
}

func TestReadMissingCategoryReportsNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	_, err := s.Read("key-1", "nothing")
	require.ErrorIs(t, err, memorykeep.ErrNotFound)
}

func TestReadCorruptStructuredFileIsDistinctFromNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.ensureNamespace("key-1"))
	require.NoError(t, os.WriteFile(
		s.structuredPath("key-1", "core"), []byte("{not json"), 0o644,
	))

	_, err := s.Read("key-1", "core")
	require.ErrorIs(t, err, memorykeep.ErrStorageCorrupt)
	require.NotErrorIs(t, err, memorykeep.ErrNotFound)
}

func TestAppendRecoversFromCorruptStructuredFile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	require.NoError(t, s.ensureNamespace("key-1"))
	require.NoError(t, os.WriteFile(
		s.structuredPath("key-1", "core"), []byte("{not json"), 0o644,
	))

	require.NoError(t, s.Append("key-1", "core", json.RawMessage(`{"fact":"x"}`)))

	payload, err := s.Read("key-1", "core")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(payload.JSON, &records))
	require.Len(t, records, 1)
}

func TestOverwriteReplacesContentEntirely(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Append("key-1", "core", json.RawMessage(`{"old":"a"}`)))
	require.NoError(t, s.Overwrite("key-1", "core", json.RawMessage(`{"new":"b"}`)))

	payload, err := s.Read("key-1", "core")
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(payload.JSON, &record))
	require.Equal(t, map[string]any{"new": "b"}, record)
}

func TestOverwriteRemovesTheOtherRepresentation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		seed       json.RawMessage
		replace    json.RawMessage
		wantFormat memorykeep.Format
	}{
		{
			name:       "raw overwrite removes structured file",
			seed:       json.RawMessage(`{"fact":"x"}`),
			replace:    json.RawMessage(`"plain text"`),
			wantFormat: memorykeep.FormatRaw,
		},
		{
			name:       "structured overwrite removes raw file",
			seed:       json.RawMessage(`"plain text"`),
			replace:    json.RawMessage(`[{"fact":"x"}]`),
			wantFormat: memorykeep.FormatStructured,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			require.NoError(t, s.Append("key-1", "notebook", testCase.seed))
			require.NoError(t, s.Overwrite("key-1", "notebook", testCase.replace))

			payload, err := s.Read("key-1", "notebook")
			require.NoError(t, err)
			require.Equal(t, testCase.wantFormat, payload.Format)

			_, statErr := os.Stat(s.structuredPath("key-1", "notebook"))
			if testCase.wantFormat == memorykeep.FormatRaw {
				require.ErrorIs(t, statErr, os.ErrNotExist)
			} else {
				require.NoError(t, statErr)
				_, rawErr := os.Stat(s.rawPath("key-1", "notebook"))
				require.ErrorIs(t, rawErr, os.ErrNotExist)
			}
		})
	}
}

func TestOverwriteRawTrimsAndAppendsNewline(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Overwrite("key-1", "notebook", json.RawMessage(`"  trimmed  "`)))

	payload, err := s.Read("key-1", "notebook")
	require.NoError(t, err)
	require.Equal(t, "trimmed\n", payload.Text)
}

func TestNamespaceIsolation(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	require.NoError(t, s.Append("key-a", "core", json.RawMessage(`{"owner":"a"}`)))
	require.NoError(t, s.Append("key-b", "core", json.RawMessage(`{"owner":"b"}`)))

	payload, err := s.Read("key-a", "core")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(payload.JSON, &records))
	require.Len(t, records, 1)
	require.Equal(t, "a", records[0]["owner"])
}

func TestInvalidNamesAreRejectedBeforeFilesystemAccess(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	tests := []struct {
		name       string
		credential string
		category   string
	}{
		{"empty category", "key-1", ""},
		{"path traversal category", "key-1", "../escape"},
		{"separator in credential", "a/b", "core"},
		{"dot category", "key-1", ".."},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := s.Append(testCase.credential, testCase.category, json.RawMessage(`"x"`))
			require.ErrorIs(t, err, memorykeep.ErrBadRequest)

			_, err = s.Read(testCase.credential, testCase.category)
			require.ErrorIs(t, err, memorykeep.ErrBadRequest)
		})
	}
}

func TestConcurrentStructuredAppendsLoseNoUpdates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	const writers = 16
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			done <- s.Append("key-1", "core", json.RawMessage(`{"fact":"x"}`))
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	payload, err := s.Read("key-1", "core")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(payload.JSON, &records))
	require.Len(t, records, writers)
}
