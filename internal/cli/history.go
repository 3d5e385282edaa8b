package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/roomsync"
)

var (
	historyCount  int
	historyPinned bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 0, "number of messages to fetch (default sync.history_count)")
	historyCmd.Flags().BoolVar(&historyPinned, "pinned", false, "only pinned messages")
}

var historyCmd = &cobra.Command{
	Use:   "history [room]",
	Short: "Print recent messages of a room",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		session, client, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()
		if _, err := session.Directory().Load(ctx); err != nil {
			return fmt.Errorf("failed to load rooms: %w", err)
		}

		resolved, err := RequireRoomContext(ctx, session.Directory(), argOrEmpty(args))
		if err != nil {
			return err
		}

		count := historyCount
		if count <= 0 {
			count = GetConfig().Sync.HistoryCount
		}
		fetched, err := client.History(ctx, resolved.Room, count)
		if err != nil {
			return roomsync.Classify(err)
		}
		msgs := roomsync.PrepareHistory(resolved.Room.ID, fetched)
		if historyPinned {
			msgs = pinnedOnly(msgs)
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, msgs)
		}
		if len(msgs) == 0 {
			fmt.Fprintf(out, "No messages in %s\n", resolved.Room.Label(session.Directory().Self()))
			return nil
		}
		relative := GetConfig().TUI.RelativeTime
		now := time.Now()
		for _, m := range msgs {
			fmt.Fprintln(out, formatMessageLine(m, now, relative))
		}
		return nil
	},
}

func pinnedOnly(msgs []models.Message) []models.Message {
	var out []models.Message
	for _, m := range msgs {
		if m.Pinned {
			out = append(out, m)
		}
	}
	return out
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
