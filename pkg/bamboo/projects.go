package bamboo

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/atlassian-client/pkg/client"
)

// Projects lists build projects.
func (c *Client) Projects(ctx context.Context, opts ListOptions) iter.Seq2[Project, error] {
	return list[Project](ctx, c, projectsPath, nil, opts, "projects", "project")
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
		c.logger.Debug().Str("project_key", key).Msg("Project not found")
		return false, nil
	default:
		return false, err
	}
}

// CreateProject creates a project. An empty name defaults to the key and
// an empty description to "Project for <key>".
func (c *Client) CreateProject(ctx context.Context, key, name, description string) error {
	if name == "" {
		name = key
	}
	if description == "" {
		description = "Project for " + key
	}
	form := url.Values{
		"projectKey":         {key},
		"projectName":        {name},
		"projectDescription": {description},
	}
	if err := c.postAction(ctx, createProjectAction, form); err != nil {
		return fmt.Errorf("create project %s: %w", key, err)
	}
	c.logger.Info().Str("project_key", key).Msg("Project created")
	return nil
}

// SetProjectGroupPermissions replaces the project permissions of a group.
// It reports false when the server answered 304 Not Modified.
func (c *Client) SetProjectGroupPermissions(ctx context.Context, key, group string, perms ProjectPermissions) (bool, error) {
	endpoint, err := client.Expand(projectGroupPermsPath, map[string]string{"projectKey": key, "groupName": group})
	if err != nil {
		return false, err
	}
	resp, err := c.api.PutJSON(ctx, endpoint, perms.names())
	if err != nil {
		return false, fmt.Errorf("set permissions of %s on %s: %w", group, key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotModified:
		return false, nil
	}
	if err := client.CheckStatus(resp); err != nil {
		return false, fmt.Errorf("set permissions of %s on %s: %w", group, key, err)
	}
	return true, nil
}

// CreateUserGroup creates a local user group.
func (c *Client) CreateUserGroup(ctx context.Context, name string) error {
	if err := c.postAction(ctx, createGroupAction, url.Values{"groupName": {name}}); err != nil {
		return fmt.Errorf("create group %s: %w", name, err)
	}
	c.logger.Info().Str("group", name).Msg("User group created")
	return nil
}

// SetUserGroupMembers sets the members of a local user group.
func (c *Client) SetUserGroupMembers(ctx context.Context, name string, members []string) error {
	form := url.Values{
		"groupName":    {name},
		"membersInput": {strings.Join(members, ",")},
	}
	if err := c.postAction(ctx, updateGroupAction, form); err != nil {
		return fmt.Errorf("update group %s: %w", name, err)
	}
	c.logger.Info().Str("group", name).Int("members", len(members)).Msg("User group updated")
	return nil
}

// postAction submits a web action form and discards the response page.
func (c *Client) postAction(ctx context.Context, action string, form url.Values) error {
	resp, err := c.api.PostForm(ctx, action, nil, form)
	if err != nil {
		return err
	}
	return client.DecodeJSON(resp, nil)
}
