package bamboo

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"github.com/Sternrassler/atlassian-client/pkg/client"
)

// Deployments returns every deployment project on the server.
func (c *Client) Deployments(ctx context.Context) ([]DeploymentProject, error) {
	endpoint, err := client.Expand(deployProjectPath, map[string]string{"id": "all"})
	if err != nil {
		return nil, err
	}
	var projects []DeploymentProject
	if err := c.api.GetJSON(ctx, endpoint, nil, &projects); err != nil {
		return nil, fmt.Errorf("list deployment projects: %w", err)
	}
	return projects, nil
}

// Deployment returns one deployment project by its numeric id.
func (c *Client) Deployment(ctx context.Context, id int64) (DeploymentProject, error) {
	endpoint, err := client.Expand(deployProjectPath, map[string]string{"id": strconv.FormatInt(id, 10)})
	if err != nil {
		return DeploymentProject{}, err
	}
	var project DeploymentProject
	if err := c.api.GetJSON(ctx, endpoint, nil, &project); err != nil {
		return DeploymentProject{}, fmt.Errorf("get deployment project %d: %w", id, err)
	}
	return project, nil
}

// EnvironmentResults lists the deployments into one environment, newest
// first.
func (c *Client) EnvironmentResults(ctx context.Context, environmentID int64, opts ListOptions) iter.Seq2[EnvironmentResult, error] {
	vars := map[string]string{"id": strconv.FormatInt(environmentID, 10)}
	return listTemplate[EnvironmentResult](ctx, c, environmentResultPath, vars, nil, opts, "", "results")
}
