package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent sync audit entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		logs, err := a.engine.Status(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("no sync activity recorded")
			return nil
		}

		pending, err := a.repo.CountJobs(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pending jobs: %d\n\n", pending)

		for _, l := range logs {
			ts := time.UnixMilli(l.Timestamp).Format("2006-01-02 15:04:05")
			line := fmt.Sprintf("%s  %-9s %-7s %s", ts, l.TriggerType, l.Status, l.Operation)
			if l.Params != "" {
				line += " " + l.Params
			}
			fmt.Println(line)
			if l.ErrorMessage != "" {
				fmt.Printf("    error: %s\n", l.ErrorMessage)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 20, "number of audit entries to show")
}
