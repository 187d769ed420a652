package bamboo

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/Sternrassler/atlassian-client/pkg/client"
)

// PlanQuery filters the plan listing. Expand is sent as given.
type PlanQuery struct {
	ListOptions
	Expand string
}

// Plans lists every plan on the server.
func (c *Client) Plans(ctx context.Context, q PlanQuery) iter.Seq2[Plan, error] {
	query := url.Values{}
	if q.Expand != "" {
		query.Set("expand", q.Expand)
	}
	return list[Plan](ctx, c, plansPath, query, q.ListOptions, "plans", "plan")
}

// PlanBranches lists the branches of a plan.
func (c *Client) PlanBranches(ctx context.Context, planKey string, enabledOnly bool, opts ListOptions) iter.Seq2[PlanBranch, error] {
	query := url.Values{}
	if enabledOnly {
		query.Set("enabledOnly", "true")
	}
	return listTemplate[PlanBranch](ctx, c, planBranchesPath, map[string]string{"key": planKey}, query, opts, "branches", "branch")
}

// DeletePlan deletes a plan or plan branch.
func (c *Client) DeletePlan(ctx context.Context, buildKey string) error {
	if err := c.postAction(ctx, deleteChainAction, url.Values{"buildKey": {buildKey}}); err != nil {
		return fmt.Errorf("delete plan %s: %w", buildKey, err)
	}
	c.logger.Info().Str("build_key", buildKey).Msg("Plan deleted")
	return nil
}

// QueueBuild queues a build of planKey. Each entry of vars is passed as
// the build variable bamboo.variable.<name>.
func (c *Client) QueueBuild(ctx context.Context, planKey string, vars map[string]string) (QueuedBuild, error) {
	endpoint, err := client.Expand(queuePlanPath, map[string]string{"key": planKey})
	if err != nil {
		return QueuedBuild{}, err
	}

	query := url.Values{}
	for name, value := range vars {
		query.Set("bamboo.variable."+name, value)
	}

	resp, err := c.api.PostForm(ctx, endpoint, query, nil)
	if err != nil {
		return QueuedBuild{}, fmt.Errorf("queue build %s: %w", planKey, err)
	}
	var queued QueuedBuild
	if err := client.DecodeJSON(resp, &queued); err != nil {
		return QueuedBuild{}, fmt.Errorf("queue build %s: %w", planKey, err)
	}

	c.logger.Info().
		Str("plan_key", planKey).
		Str("build_result_key", queued.BuildResultKey).
		Int("variables", len(vars)).
		Msg("Build queued")
	return queued, nil
}

// Queue returns the builds currently waiting in the build queue.
func (c *Client) Queue(ctx context.Context) (BuildQueue, error) {
	var body struct {
		QueuedBuilds *struct {
			Size        int           `json:"size"`
			QueuedBuild []QueuedBuild `json:"queuedBuild"`
		} `json:"queuedBuilds"`
	}
	if err := c.api.GetJSON(ctx, queuePath, url.Values{"expand": {"queuedBuilds"}}, &body); err != nil {
		return BuildQueue{}, fmt.Errorf("get build queue: %w", err)
	}
	if body.QueuedBuilds == nil {
		return BuildQueue{}, fmt.Errorf("get build queue: %w: no queuedBuilds", ErrUnexpectedResponse)
	}
	return BuildQueue{
		Size:   body.QueuedBuilds.Size,
		Builds: body.QueuedBuilds.QueuedBuild,
	}, nil
}

// PauseServer stops the server from dispatching new builds.
func (c *Client) PauseServer(ctx context.Context) (ServerState, error) {
	return c.serverAction(ctx, "pause")
}

// ResumeServer resumes a paused server.
func (c *Client) ResumeServer(ctx context.Context) (ServerState, error) {
	return c.serverAction(ctx, "resume")
}

func (c *Client) serverAction(ctx context.Context, action string) (ServerState, error) {
	endpoint, err := client.Expand(serverPath, map[string]string{"action": action})
	if err != nil {
		return ServerState{}, err
	}
	resp, err := c.api.PostForm(ctx, endpoint, nil, nil)
	if err != nil {
		return ServerState{}, fmt.Errorf("%s server: %w", action, err)
	}
	var state ServerState
	if err := client.DecodeJSON(resp, &state); err != nil {
		return ServerState{}, fmt.Errorf("%s server: %w", action, err)
	}
	c.logger.Info().Str("action", action).Str("state", state.State).Msg("Server state changed")
	return state, nil
}
