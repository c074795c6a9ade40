package pausestore

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))

	dsn := sqliteDSN("/var/lib/graphrun/pauses.db")
	path, query, ok := strings.Cut(dsn, "?")
	require.True(t, ok)
	assert.Equal(t, "file:/var/lib/graphrun/pauses.db", path)

	values, err := url.ParseQuery(query)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"journal_mode(WAL)", "busy_timeout(5000)", "synchronous(NORMAL)"},
		values["_pragma"])
}

func TestSQLiteStore_Pragmas(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "pauses.db"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}
