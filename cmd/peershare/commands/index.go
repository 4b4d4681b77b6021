package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/logger"
	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func Index(version string) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Serve the index server",
		Long:  "The index command serves an in-memory index server keeping track of which peers share which files.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{"port": "index_port"})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ver, err := semver.Parse(version)
			if err != nil {
				return fmt.Errorf("index server requires version to be set: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lgr := logger.New()
			defer lgr.Sync() //nolint:errcheck
			s := index.NewServer(viper.GetInt("index_port"), index.NewMemory(), ver, index.WithServerLogger(lgr))
			return s.Start(ctx)
		},
	}
	indexCmd.Flags().IntP("port", "p", 0, "Port to run the index server on")
	return indexCmd
}
