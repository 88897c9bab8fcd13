package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-autonomax/app/opslock"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Trigger and inspect ops tasks",
}

var opsRunCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Trigger an ops task, subject to its cooldown window",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOpsRun,
}

var opsLocksCmd = &cobra.Command{
	Use:   "locks [task]",
	Short: "List ops lock windows, or show the window of one task",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOpsLocks,
}

func init() {
	opsCmd.AddCommand(opsRunCmd, opsLocksCmd)
	rootCmd.AddCommand(opsCmd)
}

// withOpsService opens the stores the ops service needs, runs fn and closes
// them again.
func withOpsService(ctx context.Context, fn func(*service.OpsService) error) error {
	d := loadDeps()
	defer d.Close()

	if err := d.openStores(ctx); err != nil {
		return err
	}
	return fn(d.opsService(nil))
}

func runOpsRun(cmd *cobra.Command, args []string) error {
	task := ""
	if len(args) == 1 {
		task = args[0]
	}
	return withOpsService(cmd.Context(), func(ops *service.OpsService) error {
		res, err := ops.Run(cmd.Context(), task)
		if errors.Is(err, service.ErrRateLimited) {
			return fmt.Errorf("task %q is cooling down; try again later", taskOrDefault(task))
		}
		if err != nil {
			return fmt.Errorf("ops run failed: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{"status": res.Status, "task": res.Task, "run_id": res.RunID})
	})
}

type lockRow struct {
	Name        string    `json:"name"`
	LockedUntil time.Time `json:"locked_until"`
	Active      bool      `json:"active"`
}

func toLockRow(s opslock.Status) lockRow {
	return lockRow{Name: s.Name, LockedUntil: s.LockedUntil, Active: s.Active}
}

func runOpsLocks(cmd *cobra.Command, args []string) error {
	return withOpsService(cmd.Context(), func(ops *service.OpsService) error {
		if len(args) == 1 {
			st, err := ops.Lock(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read ops lock: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), toLockRow(*st))
		}

		locks, err := ops.Locks(cmd.Context())
		if err != nil {
			return fmt.Errorf("list ops locks: %w", err)
		}
		out := make([]lockRow, 0, len(locks))
		for _, l := range locks {
			out = append(out, toLockRow(l))
		}
		return writeJSON(cmd.OutOrStdout(), out)
	})
}

func taskOrDefault(task string) string {
	if task == "" {
		return service.DefaultTask
	}
	return task
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
