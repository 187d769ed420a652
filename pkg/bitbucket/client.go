// Package bitbucket is a thin client for the Bitbucket Server REST API:
// projects, groups and users.
package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
	"github.com/rs/zerolog"
)

// DefaultPort is the port of a stock Bitbucket Server install.
const DefaultPort = 7990

const apiPrefix = "/rest/api/latest"

const (
	projectsPath        = apiPrefix + "/projects"
	projectPath         = apiPrefix + "/projects/{projectKey}"
	projectAvatarPath   = apiPrefix + "/projects/{projectKey}/avatar.png"
	usersPath           = apiPrefix + "/admin/users"
	groupsPath          = apiPrefix + "/admin/groups"
	groupAddUserPath    = apiPrefix + "/admin/groups/add-user"
	groupRemoveUserPath = apiPrefix + "/admin/groups/remove-user"
)

// ErrGroupNotFound is returned when no group has exactly the requested name.
var ErrGroupNotFound = errors.New("group not found")

// DefaultConfig returns a transport configuration for a local Bitbucket
// Server.
func DefaultConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Port = DefaultPort
	cfg.Component = "bitbucket-client"
	return cfg
}

// Client talks to one Bitbucket Server.
type Client struct {
	api    *client.Client
	logger zerolog.Logger
}

// New creates a Bitbucket client from a transport configuration.
func New(cfg client.Config) (*Client, error) {
	if cfg.Component == "" {
		cfg.Component = "bitbucket-client"
	}
	api, err := client.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create bitbucket client: %w", err)
	}
	return NewWithTransport(api), nil
}

// NewWithTransport wraps an existing transport.
func NewWithTransport(api *client.Client) *Client {
	return &Client{api: api, logger: api.Logger()}
}

// Transport returns the underlying HTTP transport.
func (c *Client) Transport() *client.Client {
	return c.api
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.api.Close()
}

// ListOptions selects the window of a paged listing. A zero Limit means
// pagination.DefaultPageSize.
type ListOptions struct {
	Start int
	Limit int
}

func (o ListOptions) cursor() pagination.Options {
	size := o.Limit
	if size == 0 {
		size = pagination.DefaultPageSize
	}
	return pagination.Options{StartIndex: o.Start, PageSize: size}
}

// pagedResponse is the envelope of every Bitbucket Server listing.
type pagedResponse[T any] struct {
	Size          int  `json:"size"`
	Limit         int  `json:"limit"`
	Start         int  `json:"start"`
	IsLastPage    bool `json:"isLastPage"`
	NextPageStart int  `json:"nextPageStart"`
	Values        []T  `json:"values"`
}

// decodePaged turns a listing response into a page. Bitbucket reports the
// size of the page, not of the listing, so the total stays unknown.
func decodePaged[T any](resp *http.Response) (pagination.Page[T], error) {
	var body pagedResponse[T]
	if err := client.DecodeJSON(resp, &body); err != nil {
		return pagination.Page[T]{}, err
	}
	return pagination.NewPage(body.Values, body.Start), nil
}

// list iterates a paged resource using the start / limit parameters.
func list[T any](ctx context.Context, c *Client, endpoint string, query url.Values, opts ListOptions) iter.Seq2[T, error] {
	fetch := pagination.FetcherFunc[T](func(ctx context.Context, startIndex, pageSize int) (pagination.Page[T], error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("start", strconv.Itoa(startIndex))
		q.Set("limit", strconv.Itoa(pageSize))

		resp, err := c.api.Get(ctx, endpoint, q, nil)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		return decodePaged[T](resp)
	})
	return pagination.Iterate[T](ctx, fetch, opts.cursor())
}
