package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/events"
	"github.com/tOgg1/roomsync/internal/models"
)

var watchTail int

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchTail, "tail", 10, "number of existing messages to print first")
}

var watchCmd = &cobra.Command{
	Use:   "watch [room]",
	Short: "Follow a room in real time",
	Long: `Follow a room over the push stream and print new, edited and removed
messages until interrupted. When the stream drops, the room is polled instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		session, err := loadDirectory(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		resolved, err := RequireRoomContext(ctx, session.Directory(), argOrEmpty(args))
		if err != nil {
			return err
		}

		updates, stop, err := session.Bus().SubscribeChan("cli.watch", events.Filter{
			EventTypes: []models.EventType{models.EventTypeMessagesChanged, models.EventTypeSyncStateChanged},
			RoomID:     resolved.Room.ID,
		}, 64)
		if err != nil {
			return err
		}
		defer stop()

		if _, err := session.SelectRoom(ctx, resolved.Room.ID); err != nil {
			return err
		}

		w := &messageWatcher{
			out:      cmd.OutOrStdout(),
			errOut:   cmd.ErrOrStderr(),
			relative: GetConfig().TUI.RelativeTime,
			tail:     watchTail,
			jsonl:    IsJSONOutput() || IsJSONLOutput(),
		}
		if !w.jsonl {
			fmt.Fprintf(w.errOut, "Watching %s (Ctrl+C to stop)\n", resolved.Room.Label(session.Directory().Self()))
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-updates:
				if !ok {
					return nil
				}
				switch ev.Type {
				case models.EventTypeMessagesChanged:
					if err := w.render(session.Messages()); err != nil {
						return err
					}
				case models.EventTypeSyncStateChanged:
					w.state(ev.State)
				}
			}
		}
	},
}

// messageWatcher prints the difference between successive snapshots.
type messageWatcher struct {
	out      io.Writer
	errOut   io.Writer
	relative bool
	tail     int
	jsonl    bool

	seen    map[string]models.Message
	primed  bool
	lastErr string
	polling bool
}

type watchLine struct {
	Change  string          `json:"change"`
	Message *models.Message `json:"message,omitempty"`
	ID      string          `json:"id,omitempty"`
}

func (w *messageWatcher) render(msgs []models.Message) error {
	added, changed, removed := diffMessages(w.seen, msgs)
	if !w.primed {
		w.primed = true
		if w.tail >= 0 && len(added) > w.tail {
			added = added[len(added)-w.tail:]
		}
		changed, removed = nil, nil
	}

	next := make(map[string]models.Message, len(msgs))
	for _, m := range msgs {
		next[m.ID] = m
	}
	w.seen = next

	now := time.Now()
	for i := range added {
		if err := w.emit("added", &added[i], "", "+", now); err != nil {
			return err
		}
	}
	for i := range changed {
		if err := w.emit("changed", &changed[i], "", "~", now); err != nil {
			return err
		}
	}
	for _, id := range removed {
		if err := w.emit("removed", nil, id, "-", now); err != nil {
			return err
		}
	}
	return nil
}

func (w *messageWatcher) emit(change string, m *models.Message, id, marker string, now time.Time) error {
	if w.jsonl {
		return writeJSONL(w.out, watchLine{Change: change, Message: m, ID: id})
	}
	if m == nil {
		_, err := fmt.Fprintf(w.out, "%s %s (removed)\n", marker, id)
		return err
	}
	_, err := fmt.Fprintf(w.out, "%s %s\n", marker, formatMessageLine(*m, now, w.relative))
	return err
}

func (w *messageWatcher) state(st *models.SyncState) {
	if st == nil || w.jsonl {
		return
	}
	if st.Err != "" && st.Err != w.lastErr {
		fmt.Fprintf(w.errOut, "! %s\n", st.Err)
	}
	w.lastErr = st.Err
	if st.Polling != w.polling {
		if st.Polling {
			fmt.Fprintln(w.errOut, "! live updates unavailable, polling")
		} else {
			fmt.Fprintln(w.errOut, "! live updates restored")
		}
	}
	w.polling = st.Polling
}

// diffMessages compares a previous snapshot keyed by id with the next
// ordered snapshot.
func diffMessages(prev map[string]models.Message, next []models.Message) (added, changed []models.Message, removed []string) {
	present := make(map[string]bool, len(next))
	for _, m := range next {
		present[m.ID] = true
		old, ok := prev[m.ID]
		switch {
		case !ok:
			added = append(added, m)
		case messageChanged(old, m):
			changed = append(changed, m)
		}
	}
	for id := range prev {
		if !present[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return added, changed, removed
}

func messageChanged(a, b models.Message) bool {
	if a.Body != b.Body || a.Pinned != b.Pinned || a.Edited() != b.Edited() {
		return true
	}
	if a.Edited() && !a.EditedAt.Equal(*b.EditedAt) {
		return true
	}
	return !a.Reactions.Equal(b.Reactions)
}
