package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/logging"
	"github.com/tOgg1/roomsync/internal/tui"
)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui [room]",
	Short: "Open the interactive room viewer",
	Long: `Open a full-screen viewer with the room list, live messages, compose and
search. Without a room argument the stored context room is opened, or the
first channel when none is stored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsNonInteractive() || IsJSONOutput() || IsJSONLOutput() {
			return errors.New("tui requires an interactive terminal")
		}
		if !hasTTY() {
			return errors.New("tui requires a TTY")
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		session, err := loadDirectory(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		resolved, err := ResolveRoomContext(ctx, session.Directory(), argOrEmpty(args))
		if err != nil {
			return err
		}
		if resolved.Room.ID != "" {
			if _, err := session.SelectRoom(ctx, resolved.Room.ID); err != nil {
				return err
			}
		}

		// The viewer owns the terminal from here on.
		logging.Discard()

		cfg := GetConfig()
		return tui.Run(ctx, session, tui.Config{
			ShowTimestamps: cfg.TUI.ShowTimestamps,
			RelativeTime:   cfg.TUI.RelativeTime,
		})
	},
}
