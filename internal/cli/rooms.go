package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/models"
)

var (
	roomsChannels bool
	roomsDirect   bool
)

func init() {
	rootCmd.AddCommand(roomsCmd)
	roomsCmd.Flags().BoolVar(&roomsChannels, "channels", false, "only public and private channels")
	roomsCmd.Flags().BoolVar(&roomsDirect, "direct", false, "only direct conversations")
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		session, err := loadDirectory(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		dir := session.Directory()
		var rooms []models.Room
		switch {
		case roomsChannels && !roomsDirect:
			rooms = dir.Channels()
		case roomsDirect && !roomsChannels:
			rooms = dir.Directs()
		default:
			rooms = dir.Rooms()
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, rooms)
		}
		if len(rooms) == 0 {
			fmt.Fprintln(out, "No rooms found")
			return nil
		}

		relative := GetConfig().TUI.RelativeTime
		now := time.Now()
		rows := make([][]string, 0, len(rooms))
		for _, r := range rooms {
			unread := "-"
			if r.UnreadCount > 0 {
				unread = strconv.Itoa(r.UnreadCount)
			}
			rows = append(rows, []string{
				r.Label(dir.Self()),
				roomKindLabel(r.Kind),
				r.ID,
				unread,
				formatTime(r.UpdatedAt, now, relative),
			})
		}
		return writeTable(out, []string{"ROOM", "KIND", "ID", "UNREAD", "UPDATED"}, rows)
	},
}
