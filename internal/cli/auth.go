package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/roomsync/internal/config"
	"github.com/tOgg1/roomsync/internal/logging"
)

var (
	loginUser          string
	loginPasswordStdin bool
	loginPrintEnv      bool
	useClear           bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(useCmd)

	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "username or email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginPrintEnv, "print-env", false, "print ROOMSYNC_* exports instead of saving the session")

	useCmd.Flags().BoolVar(&useClear, "clear", false, "clear the default room")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session",
	Long: `Log in with a username and password. The session token is saved to
context.yaml in the config directory with owner-only permissions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		cfg := GetConfig()
		client, err := newAnonymousClient(cfg)
		if err != nil {
			return err
		}

		user := strings.TrimSpace(loginUser)
		if user == "" {
			if IsNonInteractive() {
				return &PreflightError{Message: "username required", NextStep: "roomsync login --user <name>"}
			}
			user, err = prompt(cmd.ErrOrStderr(), cmd.InOrStdin(), "Username: ")
			if err != nil {
				return err
			}
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}

		session, err := client.Login(ctx, user, password)
		if err != nil {
			return err
		}
		logger := logging.Component("cli")
		logger.Debug().Str("user_id", session.UserID).Msg("logged in")

		out := cmd.OutOrStdout()
		if loginPrintEnv {
			fmt.Fprintf(out, "export %s=%s\n", config.EnvVar("server.url"), client.BaseURL())
			fmt.Fprintf(out, "export %s=%s\n", config.EnvVar("auth.user_id"), session.UserID)
			fmt.Fprintf(out, "export %s=%s\n", config.EnvVar("auth.token"), session.Token)
			fmt.Fprintf(out, "export %s=%s\n", config.EnvVar("auth.username"), session.User.Username)
			return nil
		}

		store := config.DefaultContextStore()
		saved, err := store.Load()
		if err != nil {
			saved = &config.Context{}
		}
		saved.SetSession(client.BaseURL(), session.UserID, session.User.Username, session.Token)
		if err := store.Save(saved); err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(out, session.User)
		}
		fmt.Fprintf(out, "Logged in as %s\n", session.User.Label())
		PrintNextSteps(cmd, HintContext{Action: "login"})
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate and forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		store := config.DefaultContextStore()
		saved, err := store.Load()
		if err != nil {
			return err
		}
		if client, _, err := requireClient(); err == nil {
			if err := client.Logout(ctx); err != nil {
				logger := logging.Component("cli")
				logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
			}
		}
		saved.ClearSession()
		if saved.IsEmpty() {
			err = store.Clear()
		} else {
			err = store.Save(saved)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var useCmd = &cobra.Command{
	Use:   "use [room]",
	Short: "Show or set the default room",
	Long: `Set the default room used by history, watch, send and tui. A room can be
given by id, name, #name or @username. Without arguments, prints the current
context.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := config.DefaultContextStore()
		saved, err := store.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if useClear {
			saved.SetRoom("", "")
			if err := store.Save(saved); err != nil {
				return err
			}
			fmt.Fprintln(out, "Default room cleared")
			return nil
		}
		if len(args) == 0 {
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(out, map[string]string{"room_id": saved.RoomID, "room_name": saved.RoomName, "server": saved.ServerURL, "username": saved.Username})
			}
			fmt.Fprintln(out, saved.String())
			return nil
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		session, err := loadDirectory(ctx)
		if err != nil {
			return err
		}
		defer session.Close()

		room, err := findRoom(ctx, session.Directory(), args[0])
		if err != nil {
			return err
		}
		saved.SetRoom(room.ID, room.Label(session.Directory().Self()))
		if err := store.Save(saved); err != nil {
			return err
		}
		fmt.Fprintf(out, "Default room: %s (%s)\n", saved.RoomName, room.ID)
		PrintNextSteps(cmd, HintContext{Action: "use", RoomName: saved.RoomName})
		return nil
	},
}

func prompt(out io.Writer, in io.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if loginPasswordStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if !hasTTY() {
		return "", &PreflightError{
			Message:  "password prompt requires a terminal",
			NextStep: "roomsync login --user <name> --password-stdin",
		}
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
