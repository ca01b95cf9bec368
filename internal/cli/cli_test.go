// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/database"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
users:
  - id: alice
    display_name: Alice
    email: alice@example.com
  - id: bob
    display_name: Bob
    email: bob@example.com
    bio: Handy with tools
tasks:
  - title: Mow lawn
    reward: 20
    poster: alice
  - title: Walk dog
    reward: 12.5
    poster: alice
    worker: bob
    status: assigned
  - title: Fix fence
    reward: 40
    poster: alice
    worker: bob
    status: completed
  - title: Paint shed
    poster: bob
    status: cancelled
`

func newTestMarketplace(t *testing.T) *marketplace {
	t.Helper()
	return newMarketplace(database.UseFreshInMemoryDatabase(t).DB)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	t.Cleanup(func() { cmd.SetOut(nil); cmd.SetArgs(nil) })

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "crowdserve 1.2.3")
	assert.Contains(t, out.String(), "commit: abc")
}

func TestLoadSeed(t *testing.T) {
	seed, err := loadSeed(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, seed.Users, 2)
	require.Len(t, seed.Tasks, 4)
	assert.Equal(t, "Alice", seed.Users[0].DisplayName)
	assert.Equal(t, 12.5, seed.Tasks[1].Reward)

	empty, err := loadSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Tasks)

	_, err = loadSeed(strings.NewReader("tasks:\n  - title: x\n    price: 3\n"))
	assert.Error(t, err)
}

func TestApplySeed(t *testing.T) {
	ctx := context.Background()
	m := newTestMarketplace(t)
	seed, err := loadSeed(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	result, err := applySeed(ctx, m, seed)
	require.NoError(t, err)
	assert.Equal(t, seedResult{Users: 2, Tasks: 4}, result)

	tests := []struct {
		status string
		title  string
	}{
		{"open", "Mow lawn"},
		{"assigned", "Walk dog"},
		{"completed", "Fix fence"},
		{"cancelled", "Paint shed"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			tasks, err := queryTasks(ctx, m, tt.status, "")
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, tt.title, tasks[0].Title)
		})
	}

	// Completing through the workflow stores both notifications.
	count, err := m.notifications.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = m.notifications.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	again, err := applySeed(ctx, m, seed)
	require.NoError(t, err)
	assert.Equal(t, seedResult{SkippedUsers: 2, SkippedTasks: 4}, again)

	all, err := queryTasks(ctx, m, "all", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestApplySeed_RejectsNonFiniteReward(t *testing.T) {
	ctx := context.Background()
	m := newTestMarketplace(t)

	seed, err := loadSeed(strings.NewReader(`
users:
  - id: alice
    display_name: Alice
    email: alice@example.com
tasks:
  - title: Priceless
    reward: .inf
    poster: alice
`))
	require.NoError(t, err)

	_, err = applySeed(ctx, m, seed)
	require.Error(t, err)
	assert.Equal(t, "validation", apperr.Kind(err))

	all, err := queryTasks(ctx, m, "all", "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestApplySeed_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		task seedTask
		kind string
	}{
		{"completed without worker", seedTask{Title: "x", Poster: "alice", Status: "completed"}, "validation"},
		{"unknown status", seedTask{Title: "x", Poster: "alice", Status: "archived"}, "validation"},
		{"unknown poster", seedTask{Title: "x", Poster: "nobody"}, "not_found"},
		{"self assigned", seedTask{Title: "x", Poster: "alice", Worker: "alice", Status: "assigned"}, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMarketplace(t)
			seed := &seedFile{
				Users: []seedUser{{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}},
				Tasks: []seedTask{tt.task},
			}
			_, err := applySeed(ctx, m, seed)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.Kind(err))
		})
	}
}

func TestQueryTasks(t *testing.T) {
	ctx := context.Background()
	m := newTestMarketplace(t)
	seed, err := loadSeed(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	_, err = applySeed(ctx, m, seed)
	require.NoError(t, err)

	all, err := queryTasks(ctx, m, "all", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	bobs, err := queryTasks(ctx, m, "ALL", "bob")
	require.NoError(t, err)
	assert.Len(t, bobs, 3)

	bobsDone, err := queryTasks(ctx, m, "completed", "bob")
	require.NoError(t, err)
	require.Len(t, bobsDone, 1)
	assert.Equal(t, "Fix fence", bobsDone[0].Title)

	_, err = queryTasks(ctx, m, "archived", "")
	assert.Equal(t, "validation", apperr.Kind(err))

	_, err = queryTasks(ctx, m, "open", "nobody")
	assert.Equal(t, "not_found", apperr.Kind(err))
}

func TestPrintTaskTable(t *testing.T) {
	worker := "bob"
	tasks := []*models.Task{
		{ID: "t1", Title: "Walk dog", Reward: 12.5, Status: models.TaskStatusAssigned, PosterID: "alice", WorkerID: &worker},
		{ID: "t2", Title: "Mow lawn", Reward: 20, Status: models.TaskStatusOpen, PosterID: "alice"},
	}

	var out bytes.Buffer
	require.NoError(t, printTaskTable(&out, tasks))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[2], "$12.5")
	assert.Contains(t, lines[2], "bob")
	assert.Contains(t, lines[3], "$20")
	assert.Contains(t, lines[3], " - ")
}
