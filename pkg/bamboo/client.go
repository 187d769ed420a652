// Package bamboo is a thin client for the Bamboo REST API and the handful
// of web actions that have no REST equivalent.
//
// Listings are exposed as lazy sequences built on pagination.Iterate:
//
//	for plan, err := range bc.Plans(ctx, bamboo.PlanQuery{}) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(plan.Key)
//	}
package bamboo

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
	"github.com/rs/zerolog"
)

const apiPrefix = "/rest/api/latest"

// REST resources (URI templates).
const (
	projectsPath          = apiPrefix + "/project"
	projectPath           = apiPrefix + "/project/{projectKey}"
	projectGroupPermsPath = apiPrefix + "/permissions/project/{projectKey}/groups/{groupName}"
	resultsPath           = apiPrefix + "/result"
	resultPath            = apiPrefix + "/result/{key}"
	branchResultPath      = apiPrefix + "/result/{key}/branch/{branch}"
	deployProjectPath     = apiPrefix + "/deploy/project/{id}"
	environmentResultPath = apiPrefix + "/deploy/environment/{id}/results"
	plansPath             = apiPrefix + "/plan"
	planBranchesPath      = apiPrefix + "/plan/{key}/branch"
	queuePath             = apiPrefix + "/queue"
	queuePlanPath         = apiPrefix + "/queue/{key}"
	serverPath            = apiPrefix + "/server/{action}"
	stashReposPath        = "/rest/stash/latest/projects/repositories"
	stashBranchesPath     = "/rest/stash/latest/projects/repositories/branches"
)

// Web actions.
const (
	createProjectAction     = "/project/saveNewProject.action"
	createGroupAction       = "/admin/group/createGroup.action"
	updateGroupAction       = "/admin/group/updateGroup.action"
	linkedReposAction       = "/admin/configureLinkedRepositories!doDefault.action"
	createLinkedRepoAction  = "/admin/createLinkedRepository.action"
	buildsForLabelAction    = "/build/label/viewBuildsForLabel.action"
	deleteChainAction       = "/chain/admin/deleteChain!doDelete.action"
	stashRepositoryPluginID = "com.atlassian.bamboo.plugins.stash.atlassian-bamboo-plugin-stash:bbserver"
)

var (
	// ErrUnexpectedResponse is returned when a response body lacks the
	// expected structure.
	ErrUnexpectedResponse = errors.New("unexpected bamboo response")

	// ErrInvalidBuildState is returned for a build state filter other than
	// Successful, Failed or Unknown.
	ErrInvalidBuildState = errors.New("invalid build state: valid values are Successful, Failed, Unknown")
)

// DefaultConfig returns a transport configuration for a local Bamboo server.
func DefaultConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Component = "bamboo-client"
	return cfg
}

// Client talks to one Bamboo server.
type Client struct {
	api    *client.Client
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Bamboo client from a transport configuration.
func New(cfg client.Config) (*Client, error) {
	if cfg.Component == "" {
		cfg.Component = "bamboo-client"
	}
	api, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create bamboo client: %w", err)
	}
	return NewWithTransport(api), nil
}

// NewWithTransport wraps an existing transport.
func NewWithTransport(api *client.Client) *Client {
	return &Client{
		api:    api,
		logger: api.Logger(),
		now:    time.Now,
	}
}

// Transport returns the underlying HTTP transport.
func (c *Client) Transport() *client.Client {
	return c.api
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.api.Close()
}

// ListOptions selects the window of a paged listing. A zero MaxResult
// means pagination.DefaultPageSize.
type ListOptions struct {
	StartIndex int
	MaxResult  int
}

func (o ListOptions) cursor() pagination.Options {
	size := o.MaxResult
	if size == 0 {
		size = pagination.DefaultPageSize
	}
	return pagination.Options{StartIndex: o.StartIndex, PageSize: size}
}
