// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndSearch(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.Record(ctx, ActionInstall, "Smoothing", "from archive", nil))
	require.NoError(t, j.Record(ctx, ActionUninstall, "Smoothing", "", nil))
	require.NoError(t, j.Record(ctx, ActionLoadFailed, "Broken", "", errors.New("no modules")))

	all, err := j.Search(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ActionLoadFailed, all[0].Action, "newest first")
	assert.Equal(t, "no modules", all[0].Error)

	smoothing, err := j.Search(ctx, Query{Plugin: "Smoothing"})
	require.NoError(t, err)
	assert.Len(t, smoothing, 2)

	installs, err := j.Search(ctx, Query{Action: ActionInstall})
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "from archive", installs[0].Detail)

	limited, err := j.Search(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)

	require.NoError(t, j.Record(ctx, ActionLoad, "A", "", nil))
	n, err := j.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err := j.Search(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNilJournalDiscards(t *testing.T) {
	var j *Journal
	assert.NoError(t, j.Record(context.Background(), ActionLoad, "A", "", nil))
	assert.NoError(t, j.Close())
}
