package cli

import (
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandInfo describes one command of the CLI for scripting clients.
type CommandInfo struct {
	Path    string        `json:"path"`
	Use     string        `json:"use"`
	Short   string        `json:"short"`
	Aliases []string      `json:"aliases,omitempty"`
	Flags   []FlagInfo    `json:"flags,omitempty"`
	Sub     []CommandInfo `json:"subcommands,omitempty"`
}

// FlagInfo describes a flag.
type FlagInfo struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Usage     string `json:"usage"`
}

// CommandManifest is the full command tree.
type CommandManifest struct {
	Name        string        `json:"name"`
	Version     string        `json:"version,omitempty"`
	GlobalFlags []FlagInfo    `json:"global_flags"`
	Commands    []CommandInfo `json:"commands"`
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Print the command tree",
	Long:  "Print every command and flag. With --json the tree is written as a manifest for scripts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest := buildManifest(rootCmd)
		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), manifest)
		}
		var rows [][]string
		var walk func([]CommandInfo)
		walk = func(cmds []CommandInfo) {
			for _, c := range cmds {
				rows = append(rows, []string{c.Path, c.Short})
				walk(c.Sub)
			}
		}
		walk(manifest.Commands)
		return writeTable(cmd.OutOrStdout(), []string{"COMMAND", "DESCRIPTION"}, rows)
	},
}

func buildManifest(root *cobra.Command) CommandManifest {
	return CommandManifest{
		Name:        root.Name(),
		Version:     root.Version,
		GlobalFlags: collectFlags(root.PersistentFlags()),
		Commands:    collectCommands(root),
	}
}

func collectCommands(parent *cobra.Command) []CommandInfo {
	var out []CommandInfo
	for _, c := range parent.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		out = append(out, CommandInfo{
			Path:    c.CommandPath(),
			Use:     c.Use,
			Short:   c.Short,
			Aliases: c.Aliases,
			Flags:   collectFlags(c.LocalNonPersistentFlags()),
			Sub:     collectCommands(c),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectFlags(fs *pflag.FlagSet) []FlagInfo {
	var out []FlagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" || f.Hidden {
			return
		}
		out = append(out, FlagInfo{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Default:   f.DefValue,
			Usage:     f.Usage,
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
