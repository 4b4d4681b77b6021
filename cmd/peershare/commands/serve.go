package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const unshareTimeout = 5 * time.Second

// ------------------------------------------------------ Serve --------------------------------------------------------

func Serve() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve [file...]",
		Short: "Serve the share directory to other peers",
		Long: "The serve command serves the files of the share directory to requesting peers. " +
			"Files provided as arguments are shared through the index server while serving.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"port":        "listen_port",
				"share-dir":   "share_dir",
				"index":       "index",
				"advertise":   "advertise",
				"max-workers": "max_workers",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := loadConfig()
			if err != nil {
				return err
			}
			lgr, err := setupLoggingFromViper("serve")
			if err != nil {
				return err
			}
			defer lgr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newPeer(cnf, lgr)
			l, err := p.Listen(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Serving %s on %s\n", cnf.ShareDir, l.Addr())

			for _, f := range args {
				if err := p.Share(ctx, f); err != nil {
					l.Close()
					return errors.Join(err, unshareAll(p.UnshareAll))
				}
				fmt.Printf("Success. The file %s is now shared as %s.\n", f, p.Addr())
			}

			err = l.Serve(ctx)
			if uerr := unshareAll(p.UnshareAll); uerr != nil {
				lgr.Warn("unsharing files on shutdown", zap.Error(uerr))
				fmt.Printf("Could not unshare every file: %v\n", uerr)
			}
			return err
		},
	}
	serveCmd.Flags().IntP("port", "p", 0, "Port to accept file requests on")
	serveCmd.Flags().StringP("share-dir", "d", "", "Directory to serve files from")
	serveCmd.Flags().StringP("index", "i", "", indexFlagDesc)
	serveCmd.Flags().StringP("advertise", "a", "", "Address registered with the index, derived from the outbound interface if empty")
	serveCmd.Flags().IntP("max-workers", "w", 0, "Maximum number of requests served at once, unlimited if 0")
	return serveCmd
}

// unshareAll unshares with a fresh context, the serving one being done on shutdown.
func unshareAll(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), unshareTimeout)
	defer cancel()
	return fn(ctx)
}
