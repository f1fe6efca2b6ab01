package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndForRun(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Record("run-1", EventPhaseEnter, "", "PLANNER"))
	require.NoError(t, log.Record("run-1", EventApprovalAsk, "f.go", "rewrite"))
	require.NoError(t, log.Record("run-2", EventRunDone, "", ""))

	events, err := log.ForRun("run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventPhaseEnter, events[0].EventType)
	assert.Equal(t, EventApprovalAsk, events[1].EventType)
	assert.Equal(t, "f.go", events[1].File)
}

func TestForRun_EmptyForUnknownRun(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir)
	require.NoError(t, err)
	defer log.Close()

	events, err := log.ForRun("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, events)
}
