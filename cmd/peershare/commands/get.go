package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SpatiumPortae/peershare/cmd/peershare/tui/download"
	"github.com/SpatiumPortae/peershare/internal/config"
	"github.com/SpatiumPortae/peershare/internal/peer"
	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/SpatiumPortae/peershare/internal/status"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const rawPollInterval = 100 * time.Millisecond

// ------------------------------------------------------ Get ----------------------------------------------------------

func Get(version string) *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <file>",
		Short: "Download a file from a sharing peer",
		Long: "The get command looks up a peer sharing the file on the index server and downloads it " +
			"into the receive directory. Use --from to download from a known peer instead.",
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				"index":       "index",
				"receive-dir": "receive_dir",
				"tui-style":   "tui_style",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := loadConfig()
			if err != nil {
				return err
			}
			from, _ := cmd.Flags().GetString("from")
			if from != "" {
				if err := validateAddress(from); err != nil {
					return fmt.Errorf("%w: (%s) is not a valid peer address", err, from)
				}
			}
			lgr, err := setupLoggingFromViper("get")
			if err != nil {
				return err
			}
			defer lgr.Sync() //nolint:errcheck

			if err := os.MkdirAll(cnf.ReceiveDir, 0o755); err != nil {
				return fmt.Errorf("creating receive directory: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := newPeer(cnf, lgr)
			switch viper.GetString("tui_style") {
			case config.StyleRich:
				return handleGetCommand(ctx, version, p, cnf.Index, from, args[0])
			case config.StyleRaw:
				return handleGetCommandRaw(ctx, p, from, args[0])
			default:
				return errors.New("invalid tui style provided")
			}
		},
	}
	getCmd.Flags().StringP("from", "f", "", "Address of the peer to download from, skipping the index lookup")
	getCmd.Flags().StringP("receive-dir", "d", "", "Directory to store the downloaded file in")
	getCmd.Flags().StringP("index", "i", "", indexFlagDesc)
	getCmd.Flags().StringP("tui-style", "s", "", tuiStyleFlagDesc)
	return getCmd
}

// ------------------------------------------------------ Handlers -----------------------------------------------------

// handleGetCommand is the get application.
func handleGetCommand(ctx context.Context, version string, p *peer.Peer, indexAddr, from, fileName string) error {
	opts := []download.Option{download.WithContext(ctx)}
	if ver, err := semver.Parse(version); err == nil {
		opts = append(opts, download.WithVersion(ver))
	}
	if from != "" {
		opts = append(opts, download.WithPeerAddress(from))
	}
	if err := download.Run(p, indexAddr, fileName, opts...); err != nil {
		return err
	}
	fmt.Println("")
	return nil
}

// handleGetCommandRaw prints every status message on its own line.
func handleGetCommandRaw(ctx context.Context, p *peer.Peer, from, fileName string) error {
	var st *status.Status
	if from != "" {
		st = p.DownloadFrom(ctx, from, fileName)
	} else {
		st = p.Download(ctx, fileName)
	}
	printStatus(os.Stdout, st, rawPollInterval)
	return st.Err()
}

// printStatus prints the status message whenever it changes, until the status
// terminates.
func printStatus(w io.Writer, st *status.Status, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last string
	show := func() {
		if msg := st.Message(); msg != "" && msg != last {
			fmt.Fprintln(w, msg)
			last = msg
		}
	}
	for {
		select {
		case <-st.Done():
			show()
			return
		case <-ticker.C:
			show()
		}
	}
}
