package cli

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/roomsync"
)

var openContext int

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().IntVarP(&openContext, "context", "C", 3, "messages to show around the target message")
}

var openCmd = &cobra.Command{
	Use:   "open <link>",
	Short: "Resolve a deep link to a room, message or user",
	Long: `Open a room, a message in a room, or a direct conversation. Accepted forms:

  general                     room by name or id
  #general/<message-id>       message in a room
  @alice                      direct conversation (created if missing)
  https://chat.example.com/channel/general?msg=<message-id>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		target, roomRef, err := parseTarget(args[0])
		if err != nil {
			return err
		}

		session, err := loadDirectory(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		dir := session.Directory()
		if roomRef != "" {
			room, err := findRoom(ctx, dir, roomRef)
			if err != nil {
				return err
			}
			target.RoomID = room.ID
		}

		outcome, err := session.Navigate(ctx, target)
		if err != nil {
			return err
		}
		highlight, _ := session.TakeHighlight()

		out := cmd.OutOrStdout()
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, map[string]any{
				"room":        outcome.Room,
				"message_id":  target.MessageID,
				"highlighted": outcome.Highlighted,
			})
		}

		fmt.Fprintf(out, "Opened %s (%s)\n", outcome.Room.Label(dir.Self()), outcome.Room.ID)
		if target.MessageID == "" {
			return nil
		}
		if !outcome.Highlighted {
			fmt.Fprintf(out, "Message %s is not in recent history\n", target.MessageID)
			return nil
		}

		msgs := session.Messages()
		idx := -1
		for i, m := range msgs {
			if m.ID == highlight {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		lo, hi := max(0, idx-openContext), min(len(msgs), idx+openContext+1)
		relative := GetConfig().TUI.RelativeTime
		now := time.Now()
		for i := lo; i < hi; i++ {
			marker := " "
			if i == idx {
				marker = ">"
			}
			fmt.Fprintf(out, "%s %s\n", marker, formatMessageLine(msgs[i], now, relative))
		}
		return nil
	},
}

// parseTarget turns a link into a navigation target. roomRef is a room id or
// name still to be resolved against the directory.
func parseTarget(link string) (target roomsync.Target, roomRef string, err error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return target, "", fmt.Errorf("empty link")
	}

	if strings.Contains(link, "://") {
		u, err := url.Parse(link)
		if err != nil {
			return target, "", fmt.Errorf("invalid link: %w", err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) < 2 {
			return target, "", fmt.Errorf("link has no room: %s", link)
		}
		kind, name := parts[len(parts)-2], parts[len(parts)-1]
		switch kind {
		case "channel", "group", "direct":
		default:
			return target, "", fmt.Errorf("unsupported link path: %s", u.Path)
		}
		target.MessageID = u.Query().Get("msg")
		return target, name, nil
	}

	if strings.HasPrefix(link, "@") {
		target.Username = strings.TrimPrefix(link, "@")
		if target.Username == "" {
			return target, "", fmt.Errorf("empty username")
		}
		return target, "", nil
	}

	room, msg, _ := strings.Cut(link, "/")
	if strings.TrimSpace(room) == "" {
		return target, "", fmt.Errorf("link has no room: %s", link)
	}
	target.MessageID = strings.TrimSpace(msg)
	return target, room, nil
}
