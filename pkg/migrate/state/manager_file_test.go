package state

import (
	"errors"
	"testing"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManagerLifecycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := NewFileManager(fs, "/runs")
	require.NoError(t, err)

	require.NoError(t, m.InitRunLog("r1", []config.TablePair{
		{Source: "orders-v1", Destination: "orders-v2"},
		{Source: "legacy", Destination: "current"},
		{Source: "users", Destination: "users-v2"},
		{Source: "never", Destination: "started"},
	}))
	require.NoError(t, m.InitTableRunLog("r1", 0))
	require.NoError(t, m.PassedTableRun("r1", 0, 53))
	require.NoError(t, m.InitTableRunLog("r1", 1))
	require.NoError(t, m.SkippedTableRun("r1", 1, "skipped-missing-destination"))
	require.NoError(t, m.InitTableRunLog("r1", 2))
	require.NoError(t, m.FailedTableRun("r1", 2, errors.New("throttled")))
	require.NoError(t, m.PassedRunLog("r1"))

	// read back through a fresh manager so the file content is what is checked
	fresh, err := NewFileManager(fs, "/runs")
	require.NoError(t, err)
	run, err := fresh.GetRunLog("r1")
	require.NoError(t, err)
	assert.Equal(t, Success, run.Status)
	require.Len(t, run.Tables, 4)
	assert.Equal(t, 4, run.TotalTablesForThisRun)
	assert.Equal(t, "orders-v1", run.Tables[0].SourceTable)
	assert.Equal(t, 53, run.Tables[0].RowWritten)
	assert.Equal(t, Skipped, run.Tables[1].Status)
	assert.Equal(t, "skipped-missing-destination", run.Tables[1].Reason)
	assert.Equal(t, "throttled", run.Tables[2].ErrMsg)
	assert.Equal(t, Pending, run.Tables[3].Status)
	assert.Equal(t, "started", run.Tables[3].DestinationTable)

	failed, err := fresh.DidTableFailForRun("r1")
	require.NoError(t, err)
	assert.True(t, failed)
}

func TestGetLastRun(t *testing.T) {
	m, err := NewFileManager(afero.NewMemMapFs(), "/runs")
	require.NoError(t, err)

	last, err := m.GetLastRun()
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, m.InitRunLog("older", nil))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.InitRunLog("newer", nil))

	last, err = m.GetLastRun()
	require.NoError(t, err)
	assert.Equal(t, "newer", last.RunID)
}

func TestShutDownAbortsStartedRuns(t *testing.T) {
	m, err := NewFileManager(afero.NewMemMapFs(), "/runs")
	require.NoError(t, err)
	require.NoError(t, m.InitRunLog("r1", []config.TablePair{{Source: "a", Destination: "b"}, {Source: "c", Destination: "d"}}))
	require.NoError(t, m.InitTableRunLog("r1", 0))
	require.NoError(t, m.PassedTableRun("r1", 0, 1))
	require.NoError(t, m.InitTableRunLog("r1", 1))

	m.OnShutDownEv()

	run, err := m.GetRunLog("r1")
	require.NoError(t, err)
	assert.Equal(t, Aborted, run.Status)
	assert.Equal(t, Success, run.Tables[0].Status)
	assert.Equal(t, Aborted, run.Tables[1].Status)
}

func TestUnknownRunAndIndex(t *testing.T) {
	m, err := NewFileManager(afero.NewMemMapFs(), "/runs")
	require.NoError(t, err)

	_, err = m.GetRunLog("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, m.InitRunLog("r1", []config.TablePair{{Source: "a", Destination: "b"}}))
	assert.Error(t, m.PassedTableRun("r1", 5, 1))
}
