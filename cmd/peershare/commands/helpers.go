package commands

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/SpatiumPortae/peershare/internal/config"
	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/logger"
	"github.com/SpatiumPortae/peershare/internal/peer"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	indexFlagDesc = `Address of the index server. Accepted formats:
  - 127.0.0.1:8080
  - [::1]:8080
  - somedomain.com:8080
	`
	tuiStyleFlagDesc = "Style of the tui (rich|raw)"
)

var validate = validator.New()
var ErrInvalidAddress = errors.New("invalid address provided")

// validateAddress validates a hostname or IP, optionally with a port.
func validateAddress(addr string) error {
	// IPv4 and IPv6 address validation.
	if err := validate.Var(addr, "ip"); err == nil {
		return nil
	}
	// IPv4 or IPv6 or domain or localhost.
	if err := validate.Var(addr, "hostname"); err == nil {
		return nil
	}
	// IPv4 or domain or localhost and a port. Or just a shorthand port (:1234).
	if err := validate.Var(addr, "hostname_port"); err == nil {
		return nil
	}
	// The hostname_port validator does not accept IPv6 host and port combinations.
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ErrInvalidAddress
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return ErrInvalidAddress
	}
	if err := validate.Var(host, "ip"); err != nil {
		return ErrInvalidAddress
	}
	return nil
}

// bindFlags binds the named flags of cmd to the viper keys they override.
func bindFlags(cmd *cobra.Command, flags map[string]string) error {
	for flag, key := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding %s flag: %w", flag, err)
		}
	}
	return nil
}

// setupLoggingFromViper returns a logger writing to `.peershare-<cmd>.log` in
// the working directory when verbose logging is configured, a no-op logger
// otherwise.
func setupLoggingFromViper(cmd string) (*zap.Logger, error) {
	if !viper.GetBool("verbose") {
		return zap.NewNop(), nil
	}
	lgr, err := logger.NewFile(fmt.Sprintf(".peershare-%s.log", cmd))
	if err != nil {
		return nil, fmt.Errorf("could not log to the provided file: %w", err)
	}
	return lgr.Named(cmd), nil
}

// loadConfig decodes and validates the viper configuration.
func loadConfig() (config.Config, error) {
	cnf, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	if err := validateAddress(cnf.Index); err != nil {
		return config.Config{}, fmt.Errorf("%w: (%s) is not a valid index address", err, cnf.Index)
	}
	if cnf.Advertise != "" {
		if err := validateAddress(cnf.Advertise); err != nil {
			return config.Config{}, fmt.Errorf("%w: (%s) is not a valid advertise address", err, cnf.Advertise)
		}
	}
	return cnf, nil
}

// newPeer builds the peer described by the configuration, backed by the
// configured index server.
func newPeer(cnf config.Config, lgr *zap.Logger) *peer.Peer {
	return peer.New(peer.Config{
		ShareDir:    cnf.ShareDir,
		ReceiveDir:  cnf.ReceiveDir,
		ListenPort:  cnf.ListenPort,
		Advertise:   cnf.Advertise,
		ChunkSize:   cnf.ChunkSize,
		MaxWorkers:  cnf.MaxWorkers,
		DialTimeout: cnf.DialTimeout,
		IdleTimeout: cnf.IdleTimeout,
	}, index.NewClient(cnf.Index), peer.WithLogger(lgr))
}
