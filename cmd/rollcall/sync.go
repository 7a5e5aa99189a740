package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollcallhq/rollcall/backend/internal/audit"
	syncpkg "github.com/rollcallhq/rollcall/backend/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full cycle: push queued jobs, pull remote rows, reconcile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if err := a.engine.SyncCycle(ctx, audit.TriggerManual); err != nil {
			return err
		}

		full, _ := cmd.Flags().GetBool("full")
		summary := a.engine.Reconcile(ctx, audit.TriggerManual, full, "")
		fmt.Printf("reconcile: %s\n", summary.String())
		if !summary.OK() {
			return fmt.Errorf("reconciliation incomplete")
		}
		fmt.Println("sync complete")
		return nil
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Drain the pending job queue against the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		outcome, err := a.engine.Push(cmd.Context(), audit.TriggerManual)
		switch outcome {
		case syncpkg.PushDrained:
			fmt.Println("queue drained")
			return nil
		case syncpkg.PushRetry:
			return fmt.Errorf("transient failure, queue left intact: %w", err)
		case syncpkg.PushFatal:
			return fmt.Errorf("fatal failure, job discarded: %w", err)
		}
		return err
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Differentially pull attendance rows recorded by other devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Pull(cmd.Context(), audit.TriggerManual); err != nil {
			return err
		}
		fmt.Println("pull complete")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the master lists and recent events, marking orphans",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		full, _ := cmd.Flags().GetBool("full")
		target, _ := cmd.Flags().GetString("event")
		summary := a.engine.Reconcile(cmd.Context(), audit.TriggerManual, full, target)
		fmt.Println(summary.String())
		if !summary.OK() {
			return fmt.Errorf("reconciliation incomplete")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("full", false, "force full master-list passes, ignoring the version check")
	reconcileCmd.Flags().Bool("full", false, "force full master-list passes, ignoring the version check")
	reconcileCmd.Flags().String("event", "", "restrict the event pass to one local event id")
}
