package main

import (
	"github.com/Sternrassler/atlassian-client/pkg/bitbucket"
	"github.com/spf13/cobra"
)

// NewBitbucketCommand creates the bitbucket command group.
func NewBitbucketCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bitbucket",
		Aliases: []string{"bb"},
		Short:   "Query a Bitbucket Server",
	}

	cmd.AddCommand(
		newBitbucketProjectsCommand(a),
		newBitbucketGroupsCommand(a),
		newBitbucketUsersCommand(a),
	)
	return cmd
}

func (a *app) runBitbucket(fn func(bb *bitbucket.Client) error) error {
	bb, err := a.bitbucketClient()
	if err != nil {
		return err
	}
	defer bb.Close()
	return fn(bb)
}

func newBitbucketProjectsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBitbucket(func(bb *bitbucket.Client) error {
				_, err := printLines(cmd.OutOrStdout(), bb.Projects(cmd.Context(), bitbucket.ListOptions{}), a.limit)
				return err
			})
		},
	}
}

func newBitbucketGroupsCommand(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBitbucket(func(bb *bitbucket.Client) error {
				_, err := printLines(cmd.OutOrStdout(), bb.Groups(cmd.Context(), filter, bitbucket.ListOptions{}), a.limit)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only groups whose name contains this text")
	return cmd
}

func newBitbucketUsersCommand(a *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBitbucket(func(bb *bitbucket.Client) error {
				_, err := printLines(cmd.OutOrStdout(), bb.Users(cmd.Context(), filter, bitbucket.ListOptions{}), a.limit)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only users whose name, slug or email contains this text")
	return cmd
}
