// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/services"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	tasksStatus string
	tasksUser   string
	tasksOutput string
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks by status (open, assigned, completed, cancelled or all),
or every task a user posted or works on with --user.`,
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksStatus, "status", "s", "open", "Status filter (open, assigned, completed, cancelled, all)")
	tasksCmd.Flags().StringVarP(&tasksUser, "user", "u", "", "Only tasks posted by or assigned to this user id")
	tasksCmd.Flags().StringVarP(&tasksOutput, "output", "o", "table", "Output format (table, json)")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
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

	tasks, err := queryTasks(cmd.Context(), m, tasksStatus, tasksUser)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	switch tasksOutput {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	default:
		return printTaskTable(out, tasks)
	}
}

func queryTasks(ctx context.Context, m *marketplace, status, userID string) ([]*models.Task, error) {
	if userID != "" {
		tasks, err := m.workflow.TasksForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(status, "all") {
			return tasks, nil
		}
		strategy, err := services.StrategyByName(status)
		if err != nil {
			return nil, err
		}
		return services.Filter(tasks, strategy), nil
	}

	if strings.EqualFold(status, "all") {
		return m.workflow.AllTasks(ctx)
	}
	strategy, err := services.StrategyByName(status)
	if err != nil {
		return nil, err
	}
	return m.workflow.FilterTasks(ctx, strategy)
}

func printTaskTable(out io.Writer, tasks []*models.Task) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tREWARD\tPOSTER\tWORKER\tTITLE")
	fmt.Fprintln(w, "--\t------\t------\t------\t------\t-----")

	for _, t := range tasks {
		worker := "-"
		if t.HasWorker() {
			worker = *t.WorkerID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			colorStatus(t.Status),
			"$"+strconv.FormatFloat(t.Reward, 'f', -1, 64),
			t.PosterID,
			worker,
			t.Title,
		)
	}

	return w.Flush()
}

func colorStatus(status models.TaskStatus) string {
	s := string(status)
	if !isTerminal() {
		return s
	}

	switch status {
	case models.TaskStatusOpen:
		return color.GreenString(s)
	case models.TaskStatusAssigned:
		return color.YellowString(s)
	case models.TaskStatusCompleted:
		return color.CyanString(s)
	case models.TaskStatusCancelled:
		return color.RedString(s)
	default:
		return s
	}
}

// isTerminal reports whether stdout is a TTY
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
