package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/peer"
	"github.com/spf13/cobra"
)

// indexCommand builds a command running fn against the configured peer.
func indexCommand(use, short, long string, fn func(ctx context.Context, p *peer.Peer, fileName string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"index":     "index",
				"advertise": "advertise",
				"share-dir": "share_dir",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := loadConfig()
			if err != nil {
				return err
			}
			lgr, err := setupLoggingFromViper(cmd.Name())
			if err != nil {
				return err
			}
			defer lgr.Sync() //nolint:errcheck
			return fn(cmd.Context(), newPeer(cnf, lgr), args[0])
		},
	}
	cmd.Flags().StringP("index", "i", "", indexFlagDesc)
	cmd.Flags().StringP("advertise", "a", "", "Address registered with the index, derived from the outbound interface if empty")
	cmd.Flags().StringP("share-dir", "d", "", "Directory the shared file lives in")
	return cmd
}

func Share() *cobra.Command {
	return indexCommand(
		"share <file>",
		"Share a file of the share directory",
		"The share command registers a file of the share directory with the index server, "+
			"so other peers can find it. The file is served by a running serve command.",
		func(ctx context.Context, p *peer.Peer, fileName string) error {
			switch err := p.Share(ctx, fileName); {
			case errors.Is(err, index.ErrAlreadyShared):
				return fmt.Errorf("sharing %s failed, the host is already sharing this file", fileName)
			case err != nil:
				return err
			}
			fmt.Printf("Success. The file %s is now shared.\n", fileName)
			return nil
		},
	)
}

func Unshare() *cobra.Command {
	return indexCommand(
		"unshare <file>",
		"Stop sharing a file",
		"The unshare command removes the record of this host sharing the file from the index server.",
		func(ctx context.Context, p *peer.Peer, fileName string) error {
			if err := p.Unshare(ctx, fileName); err != nil {
				return fmt.Errorf("the attempt to stop sharing the file %s failed: %w", fileName, err)
			}
			fmt.Printf("Success. The file %s is no longer shared.\n", fileName)
			return nil
		},
	)
}

func Search() *cobra.Command {
	return indexCommand(
		"search <file>",
		"Search for a peer sharing a file",
		"The search command prints the address of a peer sharing the file.",
		func(ctx context.Context, p *peer.Peer, fileName string) error {
			addr, err := p.Search(ctx, fileName)
			switch {
			case errors.Is(err, index.ErrNotFound):
				return fmt.Errorf("the file %s is not currently being shared by any peer", fileName)
			case err != nil:
				return fmt.Errorf("an error occurred while searching for the file: %w", err)
			}
			fmt.Printf("%s is shared by %s\n", fileName, addr)
			return nil
		},
	)
}
