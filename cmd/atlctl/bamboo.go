package main

import (
	"fmt"

	"github.com/Sternrassler/atlassian-client/pkg/bamboo"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
	"github.com/spf13/cobra"
)

// NewBambooCommand creates the bamboo command group.
func NewBambooCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bamboo",
		Short: "Query a Bamboo server",
	}

	cmd.AddCommand(
		newBambooPlansCommand(a),
		newBambooBranchesCommand(a),
		newBambooBuildsCommand(a),
		newBambooProjectsCommand(a),
		newBambooDeploymentsCommand(a),
		newBambooQueueCommand(a),
		newBambooLabelsCommand(a),
	)
	return cmd
}

// runBamboo opens a client for the duration of fn.
func (a *app) runBamboo(fn func(bc *bamboo.Client) error) error {
	bc, err := a.bambooClient()
	if err != nil {
		return err
	}
	defer bc.Close()
	return fn(bc)
}

func newBambooPlansCommand(a *app) *cobra.Command {
	var (
		expand   string
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List build plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				q := bamboo.PlanQuery{ListOptions: bamboo.ListOptions{MaxResult: pageSize}, Expand: expand}
				n, err := printLines(cmd.OutOrStdout(), bc.Plans(cmd.Context(), q), a.limit)
				a.logger.Debug().Int("records", n).Msg("Listed plans")
				return err
			})
		},
	}

	cmd.Flags().StringVar(&expand, "expand", "", "expand parameter passed to the server")
	cmd.Flags().IntVar(&pageSize, "page-size", pagination.DefaultPageSize, "records per request")
	return cmd
}

func newBambooBranchesCommand(a *app) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "branches <plan-key>",
		Short: "List the branches of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				_, err := printLines(cmd.OutOrStdout(), bc.PlanBranches(cmd.Context(), args[0], enabledOnly, bamboo.ListOptions{}), a.limit)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "only list enabled branches")
	return cmd
}

func newBambooBuildsCommand(a *app) *cobra.Command {
	var (
		planKey string
		branch  string
		state   string
		labels  []string
		expand  []string
	)

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List build results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if branch != "" && planKey == "" {
				return fmt.Errorf("--branch requires --plan")
			}
			return a.runBamboo(func(bc *bamboo.Client) error {
				if branch != "" {
					q := bamboo.BranchResultQuery{Labels: labels, Expand: expand, BuildState: state}
					_, err := printLines(cmd.OutOrStdout(), bc.BranchResults(cmd.Context(), planKey, branch, q), a.limit)
					return err
				}
				q := bamboo.BuildQuery{PlanKey: planKey, Labels: labels, Expand: expand}
				_, err := printLines(cmd.OutOrStdout(), bc.Builds(cmd.Context(), q), a.limit)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&planKey, "plan", "", "plan key (default: latest result of every plan)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name; requires --plan")
	cmd.Flags().StringVar(&state, "state", "", "branch build state: Successful, Failed or Unknown")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "only results with these labels")
	cmd.Flags().StringSliceVar(&expand, "expand", nil, "result sections to expand (artifacts, labels, stages, ...)")
	return cmd
}

func newBambooProjectsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List build projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				_, err := printLines(cmd.OutOrStdout(), bc.Projects(cmd.Context(), bamboo.ListOptions{}), a.limit)
				return err
			})
		},
	}
}

func newBambooDeploymentsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deployments",
		Short: "List deployment projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				projects, err := bc.Deployments(cmd.Context())
				if err != nil {
					return err
				}
				_, err = printLines(cmd.OutOrStdout(), slice(projects), a.limit)
				return err
			})
		},
	}
}

func newBambooQueueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the build queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				queue, err := bc.Queue(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), queue)
			})
		},
	}
}

func newBambooLabelsCommand(a *app) *cobra.Command {
	var (
		group       bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "labels <label>...",
		Short: "Find builds by label",
		Long: "Find builds by label. Builds are printed as they are found; a build\n" +
			"with several of the labels is printed once per label. With --group the\n" +
			"labels are searched concurrently and printed as one object keyed by label.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBamboo(func(bc *bamboo.Client) error {
				if !group {
					_, err := printLines(cmd.OutOrStdout(), bc.BuildsByLabel(cmd.Context(), args...), a.limit)
					return err
				}

				cfg := pagination.DefaultConfig()
				cfg.MaxConcurrency = concurrency
				byLabel, err := bc.BuildsByLabels(cmd.Context(), cfg, args)
				if byLabel != nil {
					if printErr := printJSON(cmd.OutOrStdout(), byLabel); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&group, "group", false, "search labels concurrently and group the builds by label")
	cmd.Flags().IntVar(&concurrency, "concurrency", pagination.DefaultConfig().MaxConcurrency, "labels searched at once with --group")
	return cmd
}
