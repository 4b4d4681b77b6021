package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/SpatiumPortae/peershare/internal/config"
	"github.com/alecthomas/chroma/quick"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func Config() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View and configure options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	configCmd.AddCommand(
		configPath(),
		configView(),
		configEdit(),
		configSet(),
		configReset(),
	)
	return configCmd
}

func configPath() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Output the path of the config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(viper.ConfigFileUsed())
		},
	}
}

func configView() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "View the configured options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("config file (%s) could not be read: %w", path, err)
			}
			if err := quick.Highlight(cmd.OutOrStdout(), string(content), "yaml", "terminal256", "onedark"); err != nil {
				// Fall back to the plain contents.
				fmt.Fprintln(cmd.OutOrStdout(), string(content))
			}
			return nil
		},
	}
}

func configEdit() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the configuration file in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			// Only the executable is looked up, editor arguments are dropped.
			editor, _, _ := strings.Cut(os.Getenv("EDITOR"), " ")
			if editor == "" {
				//lint:ignore ST1005 error string is command output
				return fmt.Errorf("Could not find default editor (is the $EDITOR variable set?)\nOptionally you can open the file (%s) manually", path)
			}
			editorCmd := exec.Command(editor, path)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr
			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to open file (%s) in editor (%s): %w", path, editor, err)
			}
			return nil
		},
	}
}

func configSet() *cobra.Command {
	keys := maps.Keys(config.GetDefault().Map())
	slices.Sort(keys)
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Set a single option",
		Long:      "Set a single option. Known keys: " + strings.Join(keys, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !slices.Contains(keys, key) {
				return fmt.Errorf("unknown config key %q", key)
			}
			viper.Set(key, value)
			if _, err := config.Load(viper.GetViper()); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := viper.WriteConfig(); err != nil {
				return fmt.Errorf("writing config file (%s): %w", viper.ConfigFileUsed(), err)
			}
			return nil
		},
	}
}

func configReset() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset to the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			if err := os.WriteFile(path, config.GetDefault().Yaml(), 0o644); err != nil {
				return fmt.Errorf("config file (%s) could not be written to: %w", path, err)
			}
			return nil
		},
	}
}
