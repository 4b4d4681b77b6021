package main

import (
	"fmt"
	"os"

	"github.com/SpatiumPortae/peershare/cmd/peershare/commands"
	"github.com/SpatiumPortae/peershare/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overwritten at build time through -ldflags "-X main.version=vX.Y.Z".
var version = "v0.0.0"

// rootCmd is the top level `peershare` command on which the other subcommands are attached to.
var rootCmd = &cobra.Command{
	Use:   "peershare",
	Short: "peershare shares files directly between peers over TCP.",
	Long: "peershare serves files from a share directory to other peers and downloads files they share, " +
		"using an index server to find which peer shares which file.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	},
}

// Entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Initialization of cobra and viper.
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information to a file on the format `.peershare-[command].log` in the current directory")

	rootCmd.AddCommand(commands.Serve())
	rootCmd.AddCommand(commands.Get(version))
	rootCmd.AddCommand(commands.Share())
	rootCmd.AddCommand(commands.Unshare())
	rootCmd.AddCommand(commands.Search())
	rootCmd.AddCommand(commands.Index(version))
	rootCmd.AddCommand(commands.Config())
	rootCmd.AddCommand(commands.Version(version))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
