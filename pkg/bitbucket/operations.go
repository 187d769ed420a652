package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"

	"github.com/Sternrassler/atlassian-client/pkg/client"
)

// Projects lists the projects visible to the user.
func (c *Client) Projects(ctx context.Context, opts ListOptions) iter.Seq2[Project, error] {
	return list[Project](ctx, c, projectsPath, nil, opts)
}

// Project returns one project by key.
func (c *Client) Project(ctx context.Context, key string) (Project, error) {
	endpoint, err := client.Expand(projectPath, map[string]string{"projectKey": key})
	if err != nil {
		return Project{}, err
	}
	var project Project
	if err := c.api.GetJSON(ctx, endpoint, nil, &project); err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", key, err)
	}
	return project, nil
}

// ProjectExists reports whether a project exists. Errors other than 404
// are returned.
func (c *Client) ProjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.Project(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case client.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ProjectAvatarURL returns the URL of a project's avatar image.
func (c *Client) ProjectAvatarURL(key string) (string, error) {
	endpoint, err := client.Expand(projectAvatarPath, map[string]string{"projectKey": key})
	if err != nil {
		return "", err
	}
	return c.api.MakeURL(endpoint), nil
}

// Groups lists groups whose name contains filter. An empty filter lists
// every group.
func (c *Client) Groups(ctx context.Context, filter string, opts ListOptions) iter.Seq2[Group, error] {
	return list[Group](ctx, c, groupsPath, filterQuery(filter), opts)
}

// GroupByName returns the group named exactly name. The server filter is
// a substring match, so every candidate is compared.
func (c *Client) GroupByName(ctx context.Context, name string) (Group, error) {
	for group, err := range c.Groups(ctx, name, ListOptions{}) {
		if err != nil {
			return Group{}, fmt.Errorf("find group %s: %w", name, err)
		}
		if group.Name == name {
			return group, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
}

// GroupExists reports whether a group named exactly name exists.
func (c *Client) GroupExists(ctx context.Context, name string) (bool, error) {
	_, err := c.GroupByName(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrGroupNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Users lists users whose name, slug or email contains filter.
func (c *Client) Users(ctx context.Context, filter string, opts ListOptions) iter.Seq2[User, error] {
	return list[User](ctx, c, usersPath, filterQuery(filter), opts)
}

// AddUserToGroup adds a user to a group.
func (c *Client) AddUserToGroup(ctx context.Context, group, user string) error {
	if err := c.postMembership(ctx, groupAddUserPath, group, user); err != nil {
		return fmt.Errorf("add %s to group %s: %w", user, group, err)
	}
	c.logger.Info().Str("group", group).Str("user", user).Msg("User added to group")
	return nil
}

// RemoveUserFromGroup removes a user from a group.
func (c *Client) RemoveUserFromGroup(ctx context.Context, group, user string) error {
	if err := c.postMembership(ctx, groupRemoveUserPath, group, user); err != nil {
		return fmt.Errorf("remove %s from group %s: %w", user, group, err)
	}
	c.logger.Info().Str("group", group).Str("user", user).Msg("User removed from group")
	return nil
}

func (c *Client) postMembership(ctx context.Context, endpoint, group, user string) error {
	resp, err := c.api.PostJSON(ctx, endpoint, membership{Context: group, ItemName: user})
	if err != nil {
		return err
	}
	return client.DecodeJSON(resp, nil)
}

func filterQuery(filter string) url.Values {
	if filter == "" {
		return nil
	}
	return url.Values{"filter": {filter}}
}
