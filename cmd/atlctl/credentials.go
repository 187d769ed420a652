package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Sternrassler/atlassian-client/internal/credential"
	"github.com/spf13/cobra"
)

// NewCredentialsCommand creates the credentials command group.
func NewCredentialsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage passwords stored in the OS keyring",
	}
	cmd.AddCommand(newCredentialsSetCommand(a), newCredentialsDeleteCommand(a))
	return cmd
}

// serverUser returns the configured username of a server.
func (a *app) serverUser(server string) (string, error) {
	var sc ServerConfig
	switch server {
	case "bamboo":
		sc = a.cfg.Bamboo
	case "bitbucket":
		sc = a.cfg.Bitbucket
	default:
		return "", fmt.Errorf("unknown server %q: use bamboo or bitbucket", server)
	}
	if sc.Username == "" {
		return "", fmt.Errorf("no username configured for %s", server)
	}
	return sc.Username, nil
}

func newCredentialsSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "set <bamboo|bitbucket>",
		Short:     "Store the password of the configured user, read from stdin",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bamboo", "bitbucket"},
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.serverUser(args[0])
			if err != nil {
				return err
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				if err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				return fmt.Errorf("empty password")
			}

			store, err := a.openStore(a.cfg.KeyringDir)
			if err != nil {
				return err
			}
			if err := store.Set(credential.Key(args[0], user), password); err != nil {
				return err
			}
			a.logger.Info().Str("server", args[0]).Str("username", user).Msg("Password stored")
			return nil
		},
	}
}

func newCredentialsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "delete <bamboo|bitbucket>",
		Short:     "Remove the stored password of the configured user",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bamboo", "bitbucket"},
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.serverUser(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore(a.cfg.KeyringDir)
			if err != nil {
				return err
			}
			return store.Delete(credential.Key(args[0], user))
		},
	}
}
