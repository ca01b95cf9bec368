// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/services"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML fixture format read by the seed command
type seedFile struct {
	Users []seedUser `yaml:"users"`
	Tasks []seedTask `yaml:"tasks"`
}

type seedUser struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	Bio         string `yaml:"bio"`
}

type seedTask struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Location    string  `yaml:"location"`
	Reward      float64 `yaml:"reward"`
	Poster      string  `yaml:"poster"`
	Worker      string  `yaml:"worker"`
	// Status is the state to drive the task to; empty means OPEN
	Status string `yaml:"status"`
}

type seedResult struct {
	Users        int
	SkippedUsers int
	Tasks        int
	SkippedTasks int
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load users and tasks from a YAML fixture file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	seed, err := loadSeed(f)
	if err != nil {
		return err
	}

	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.CloseGlobal()

	m, err := openMarketplace(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	result, err := applySeed(cmd.Context(), m, seed)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users (%d already present) and %d tasks (%d already present)\n",
		result.Users, result.SkippedUsers, result.Tasks, result.SkippedTasks)
	return nil
}

func loadSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// applySeed registers users whose id is not taken yet, then creates each
// task and walks it through the lifecycle to its requested status. A task
// whose poster already posted one with the same title is skipped, so
// re-running a fixture adds nothing.
func applySeed(ctx context.Context, m *marketplace, seed *seedFile) (seedResult, error) {
	var result seedResult

	for _, u := range seed.Users {
		if u.ID != "" {
			if _, err := m.users.Get(ctx, u.ID); err == nil {
				result.SkippedUsers++
				continue
			}
		}
		reg := services.Registration{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, Bio: u.Bio}
		if _, err := m.users.Register(ctx, reg); err != nil {
			return result, fmt.Errorf("user %q: %w", u.Email, err)
		}
		result.Users++
	}

	for i, st := range seed.Tasks {
		created, err := seedOneTask(ctx, m, st)
		if err != nil {
			return result, fmt.Errorf("task %d (%q): %w", i+1, st.Title, err)
		}
		if created {
			result.Tasks++
		} else {
			result.SkippedTasks++
		}
	}
	return result, nil
}

func seedOneTask(ctx context.Context, m *marketplace, st seedTask) (bool, error) {
	status := models.TaskStatus(strings.ToUpper(strings.TrimSpace(st.Status)))
	if status == "" {
		status = models.TaskStatusOpen
	}
	if !status.IsValid() {
		return false, apperr.Invalid("status", "unknown status %q", st.Status)
	}
	if status.RequiresWorker() && st.Worker == "" {
		return false, apperr.Invalid("worker", "a %s task needs a worker", status)
	}

	existing, err := m.workflow.TasksForUser(ctx, st.Poster)
	if err != nil {
		return false, err
	}
	title := strings.TrimSpace(st.Title)
	if lo.ContainsBy(existing, func(t *models.Task) bool { return t.IsPostedBy(st.Poster) && t.Title == title }) {
		return false, nil
	}

	task, err := m.workflow.CreateTask(ctx, services.TaskSpec{
		Title:       st.Title,
		Description: st.Description,
		Location:    st.Location,
		Reward:      st.Reward,
	}, st.Poster)
	if err != nil {
		return false, err
	}

	switch status {
	case models.TaskStatusCancelled:
		_, err = m.workflow.CancelTask(ctx, task.ID, st.Poster)
	case models.TaskStatusAssigned, models.TaskStatusCompleted:
		_, err = m.workflow.AcceptTask(ctx, task.ID, st.Worker)
		if err == nil && status == models.TaskStatusCompleted {
			_, err = m.workflow.CompleteTask(ctx, task.ID)
		}
	}
	return err == nil, err
}
