package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollcallhq/rollcall/backend/internal/sync/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the background scheduler until interrupted",
	Long: `Start the background scheduler: a push/pull cycle on the configured
cadence and a master-list reconcile on a longer one. Stops cleanly on
SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sched := scheduler.New(a.engine, &scheduler.Config{
			CycleInterval:     parseInterval("sync.cycle_interval", 5*time.Minute),
			ReconcileInterval: parseInterval("sync.reconcile_interval", time.Hour),
		})

		ctx := cmd.Context()
		sched.Start(ctx)
		defer sched.Stop()

		// Kick one cycle immediately so a short-lived run still syncs.
		sched.TriggerSync(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			fmt.Printf("received %s, shutting down\n", sig)
		case <-ctx.Done():
		}
		return nil
	},
}
