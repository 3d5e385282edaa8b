package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/roomsync"
)

var (
	messageRoom string
	pinRemove   bool
	reactRemove bool
)

func init() {
	rootCmd.AddCommand(sendCmd, editCmd, deleteCmd, pinCmd, reactCmd)
	for _, cmd := range []*cobra.Command{sendCmd, editCmd, deleteCmd, pinCmd, reactCmd} {
		cmd.Flags().StringVarP(&messageRoom, "room", "r", "", "room id, name, #name or @user (default: stored room)")
	}
	pinCmd.Flags().BoolVar(&pinRemove, "unpin", false, "unpin instead of pin")
	reactCmd.Flags().BoolVar(&reactRemove, "remove", false, "remove the reaction instead of adding it")
}

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoomSession(cmd, func(op roomOp) error {
			msg, err := op.session.Send(op.ctx, op.roomID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(cmd.OutOrStdout(), msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", msg.ID, op.label)
			PrintNextSteps(cmd, HintContext{Action: "send", RoomName: op.label, MessageID: msg.ID})
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <message-id> <text>",
	Short: "Edit a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoomSession(cmd, func(op roomOp) error {
			if err := op.session.Edit(op.ctx, op.roomID, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edited %s\n", args[0])
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <message-id>",
	Short: "Delete a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoomSession(cmd, func(op roomOp) error {
			if err := op.session.Delete(op.ctx, op.roomID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <message-id>",
	Short: "Pin or unpin a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoomSession(cmd, func(op roomOp) error {
			if err := op.session.SetPinned(op.ctx, op.roomID, args[0], !pinRemove); err != nil {
				return err
			}
			verb := "Pinned"
			if pinRemove {
				verb = "Unpinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
			return nil
		})
	},
}

var reactCmd = &cobra.Command{
	Use:   "react <message-id> <emoji>",
	Short: "Add or remove a reaction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoomSession(cmd, func(op roomOp) error {
			if err := op.session.React(op.ctx, op.roomID, args[0], args[1], !reactRemove); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reacted to %s\n", args[0])
			return nil
		})
	},
}

type roomOp struct {
	ctx     context.Context
	session *roomsync.Session
	roomID  string
	label   string
}

// withRoomSession resolves the target room and runs fn with a session.
func withRoomSession(cmd *cobra.Command, fn func(op roomOp) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	session, err := loadDirectory(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	resolved, err := RequireRoomContext(ctx, session.Directory(), messageRoom)
	if err != nil {
		return err
	}
	return fn(roomOp{
		ctx:     ctx,
		session: session,
		roomID:  resolved.Room.ID,
		label:   resolved.Room.Label(session.Directory().Self()),
	})
}
