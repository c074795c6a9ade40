package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestRunLog(t *testing.T) {
	logger, buf := jsonLogger()
	log := ForRun(logger, "run-1")

	log.Started("initial")
	log.Finished("paused", 1500*time.Millisecond, 4)
	log.Failed(errors.New("node x failed"), time.Second)
	log.PauseSaved(2, 512)
	log.PauseNotSaved(errors.New("disk full"))

	recs := records(t, buf)
	require.Len(t, recs, 5)
	for _, r := range recs {
		assert.Equal(t, "run-1", r["run_id"])
	}

	assert.Equal(t, "graph run started", recs[0]["msg"])
	assert.Equal(t, "initial", recs[0]["reason"])

	assert.Equal(t, "graph run finished", recs[1]["msg"])
	assert.Equal(t, "paused", recs[1]["status"])
	assert.EqualValues(t, 4, recs[1]["steps"])
	assert.EqualValues(t, 1500*time.Millisecond, recs[1]["elapsed"])

	assert.Equal(t, "ERROR", recs[2]["level"])
	assert.Equal(t, "node x failed", recs[2]["error"])

	assert.EqualValues(t, 2, recs[3]["sequence"])
	assert.EqualValues(t, 512, recs[3]["size_bytes"])

	assert.Equal(t, "pause state not saved", recs[4]["msg"])
}

func TestNodeLog(t *testing.T) {
	logger, buf := jsonLogger()
	nlog := ForRun(logger, "run-1").Node("fetch", "http-request")

	nlog.Started()
	nlog.Retrying(1, 20*time.Millisecond, errors.New("503"))
	nlog.Succeeded(2)
	nlog.Failed(3, errors.New("gave up"))

	recs := records(t, buf)
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.Equal(t, "run-1", r["run_id"])
		assert.Equal(t, "fetch", r["node_id"])
		assert.Equal(t, "http-request", r["node_kind"])
	}
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.EqualValues(t, 1, recs[1]["attempt"])
	assert.Equal(t, "503", recs[1]["error"])
	assert.EqualValues(t, 2, recs[2]["attempts"])
	assert.Contains(t, recs[2], "elapsed")
	assert.Equal(t, "ERROR", recs[3]["level"])
	assert.Equal(t, "gave up", recs[3]["error"])
}

func TestForRun_NilLogger(t *testing.T) {
	log := ForRun(nil, "run-1")
	require.NotNil(t, log.Logger())
	assert.NotPanics(t, func() {
		log.Started("initial")
		log.Node("a", "start").Failed(1, errors.New("x"))
	})
}
