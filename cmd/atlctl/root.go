package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/Sternrassler/atlassian-client/internal/credential"
	"github.com/Sternrassler/atlassian-client/pkg/bamboo"
	"github.com/Sternrassler/atlassian-client/pkg/bitbucket"
	"github.com/Sternrassler/atlassian-client/pkg/logging"
	"github.com/Sternrassler/atlassian-client/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath  string
	logLevel    string
	limit       int
	dumpMetrics bool

	cfg       *AppConfig
	logger    zerolog.Logger
	openStore func(dir string) (*credential.Store, error)
}

func newApp() *app {
	return &app{openStore: credential.Open}
}

// NewRootCommand creates the atlctl command tree.
func NewRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "atlctl",
		Short:         "Query Bamboo and Bitbucket Server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.LogLevel),
				Pretty: cfg.LogPretty,
				Output: cmd.ErrOrStderr(),
			})
			a.logger = logging.NewLogger("atlctl")
			a.logger.Debug().Str("command", cmd.CommandPath()).Msg("Starting")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.dumpMetrics {
				return nil
			}
			return metrics.Dump(cmd.ErrOrStderr(), metrics.Gatherer, metrics.Prefix)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default "+DefaultConfigPath()+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	cmd.PersistentFlags().IntVarP(&a.limit, "limit", "n", 0, "stop after this many records (0 = all)")
	cmd.PersistentFlags().BoolVar(&a.dumpMetrics, "metrics", false, "print request metrics to stderr on exit")

	cmd.AddCommand(
		NewBambooCommand(a),
		NewBitbucketCommand(a),
		NewCredentialsCommand(a),
	)
	return cmd
}

// withPassword fills in the password of server from the keyring when the
// config names a user but no password.
func (a *app) withPassword(server string, sc ServerConfig) ServerConfig {
	if sc.Username == "" || sc.Password != "" {
		return sc
	}

	store, err := a.openStore(a.cfg.KeyringDir)
	if err != nil {
		a.logger.Warn().Err(err).Str("server", server).Msg("Keyring unavailable, continuing without password")
		return sc
	}
	password, err := store.Get(credential.Key(server, sc.Username))
	switch {
	case err == nil:
		sc.Password = password
	case errors.Is(err, credential.ErrNotFound):
		a.logger.Debug().Str("server", server).Str("username", sc.Username).Msg("No stored password")
	default:
		a.logger.Warn().Err(err).Str("server", server).Msg("Keyring lookup failed")
	}
	return sc
}

func (a *app) bambooClient() (*bamboo.Client, error) {
	sc := a.withPassword("bamboo", a.cfg.Bamboo)
	return bamboo.New(sc.clientConfig("bamboo-client"))
}

func (a *app) bitbucketClient() (*bitbucket.Client, error) {
	sc := a.withPassword("bitbucket", a.cfg.Bitbucket)
	return bitbucket.New(sc.clientConfig("bitbucket-client"))
}

// printLines writes each record of seq as one JSON line. It stops reading
// after limit records, so no further pages are requested.
func printLines[T any](w io.Writer, seq iter.Seq2[T, error], limit int) (int, error) {
	enc := json.NewEncoder(w)
	count := 0
	for item, err := range seq {
		if err != nil {
			return count, err
		}
		if err := enc.Encode(item); err != nil {
			return count, fmt.Errorf("write record: %w", err)
		}
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return count, nil
}

// printJSON writes v as a single JSON line.
func printJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// slice adapts a fully fetched result to the line printer.
func slice[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}
