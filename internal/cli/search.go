package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/roomsync"
)

var (
	searchRoom   string
	searchGlobal bool
	searchLimit  int
)

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchRoom, "room", "r", "", "search inside this room (default: stored room)")
	searchCmd.Flags().BoolVarP(&searchGlobal, "global", "g", false, "search messages, users, channels and files everywhere")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results per category")
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search messages in a room, or globally",
	Long: `Search the messages of one room, or with --global search messages, users,
channels and files across the server. Without --global and without a room,
the search is global.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return fmt.Errorf("search text is empty")
		}

		session, client, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		cfg := GetConfig()
		results := models.SearchResults{Query: query, Scope: models.ScopeGlobal}

		var room models.Room
		if !searchGlobal {
			if _, err := session.Directory().Load(ctx); err != nil {
				return fmt.Errorf("failed to load rooms: %w", err)
			}
			resolved, err := ResolveRoomContext(ctx, session.Directory(), searchRoom)
			if err != nil {
				return err
			}
			room = resolved.Room
		}

		if room.ID != "" {
			limit := pick(searchLimit, cfg.Search.RoomLimit)
			msgs, err := client.SearchRoom(ctx, room.ID, query, limit)
			if err != nil {
				return roomsync.Classify(err)
			}
			results.Scope = models.ScopeRoom
			results.RoomID = room.ID
			results.Messages = msgs
		} else {
			global := client.SearchGlobal(ctx, query, pick(searchLimit, cfg.Search.GlobalLimit))
			global.Query = query
			global.Scope = models.ScopeGlobal
			results = global
		}

		out := cmd.OutOrStdout()
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, results)
		}
		return printSearchResults(out, results, session.Directory().Self(), cfg.TUI.RelativeTime)
	},
}

func printSearchResults(out io.Writer, res models.SearchResults, self string, relative bool) error {
	now := time.Now()
	total := len(res.Messages) + len(res.Users) + len(res.Channels) + len(res.Files)
	if total == 0 {
		_, err := fmt.Fprintf(out, "No results for %q\n", res.Query)
		return err
	}

	if len(res.Messages) > 0 {
		fmt.Fprintf(out, "Messages (%d)\n", len(res.Messages))
		for _, m := range res.Messages {
			fmt.Fprintf(out, "  %s  %s\n", formatMessageLine(m, now, relative), m.ID)
		}
	}
	if len(res.Users) > 0 {
		fmt.Fprintf(out, "Users (%d)\n", len(res.Users))
		for _, u := range res.Users {
			line := "  @" + u.Username
			if u.Name != "" {
				line += "  " + u.Name
			}
			if u.Status != "" {
				line += "  (" + u.Status + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
	if len(res.Channels) > 0 {
		fmt.Fprintf(out, "Channels (%d)\n", len(res.Channels))
		for _, r := range res.Channels {
			line := "  " + r.Label(self)
			if r.Topic != "" {
				line += "  " + r.Topic
			}
			fmt.Fprintln(out, line)
		}
	}
	if len(res.Files) > 0 {
		fmt.Fprintf(out, "Files (%d)\n", len(res.Files))
		for _, f := range res.Files {
			fmt.Fprintf(out, "  %s  %s\n", f.Name, f.URL)
		}
	}
	return nil
}

func pick(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
