package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete entities flagged as missing on the cloud",
	Long: `Delete local attendees and groups that the last reconciliation flagged
as no longer present on the cloud. Marking is reversible; this is not. With
--attendee or --group only that one entity is removed, and the removal is
refused while attendance records or mappings still reference it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		rec := a.engine.Reconciler()

		attendeeID, _ := cmd.Flags().GetString("attendee")
		groupID, _ := cmd.Flags().GetString("group")

		if attendeeID != "" {
			if err := rec.PurgeAttendee(ctx, attendeeID); err != nil {
				return err
			}
			fmt.Printf("attendee %s removed\n", attendeeID)
			return nil
		}
		if groupID != "" {
			if err := rec.PurgeGroup(ctx, groupID); err != nil {
				return err
			}
			fmt.Printf("group %s removed\n", groupID)
			return nil
		}

		attendees, groups, err := rec.PurgeAllMissingFromCloud(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d attendees, %d groups\n", attendees, groups)
		return nil
	},
}

func init() {
	purgeCmd.Flags().String("attendee", "", "remove one attendee (refused while in use)")
	purgeCmd.Flags().String("group", "", "remove one group (refused while in use)")
}
