package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g., "login", "use", "send")
	Action string

	// RoomName is the room involved, for display
	RoomName string

	// MessageID is the message involved (if any)
	MessageID string
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON output is enabled.
func PrintNextSteps(cmd *cobra.Command, ctx HintContext) {
	if IsJSONOutput() || IsJSONLOutput() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(out, "  %s\n", hint)
	}
}

func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "login":
		return []string{
			"roomsync rooms              # list your rooms",
			"roomsync use <room>         # pick a default room",
		}
	case "use":
		return []string{
			"roomsync history            # recent messages in " + ctx.RoomName,
			"roomsync watch              # follow new messages",
			"roomsync tui                # open the viewer",
		}
	case "send":
		if ctx.MessageID == "" {
			return nil
		}
		return []string{
			fmt.Sprintf("roomsync edit %s <text>   # change it", ctx.MessageID),
			fmt.Sprintf("roomsync delete %s        # remove it", ctx.MessageID),
		}
	default:
		return nil
	}
}
