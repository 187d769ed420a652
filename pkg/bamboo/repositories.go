package bamboo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/atlassian-client/pkg/client"
)

// ErrRepositoryListNotFound is returned when the linked repositories page
// has no repository panel, typically because the user lacks admin rights.
var ErrRepositoryListNotFound = errors.New("linked repository list not found on page")

// stashSearchLimit is the page size the repository pickers use.
const stashSearchLimit = "100"

// browserAccept is sent where the server answers only browser requests.
const browserAccept = "application/json,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// LinkedRepositories lists the linked repositories from the admin page.
func (c *Client) LinkedRepositories(ctx context.Context) ([]LinkedRepository, error) {
	resp, err := c.api.Get(ctx, linkedReposAction, nil, http.Header{"Accept": {"text/html"}})
	if err != nil {
		return nil, fmt.Errorf("list linked repositories: %w", err)
	}
	defer resp.Body.Close()

	if err := client.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("list linked repositories: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse linked repositories: %w", err)
	}
	return parseLinkedRepositories(doc)
}

func parseLinkedRepositories(doc *goquery.Document) ([]LinkedRepository, error) {
	panel := doc.Find("div#panel-editor-list > ul").First()
	if panel.Length() == 0 {
		return nil, ErrRepositoryListNotFound
	}

	repos := []LinkedRepository{}
	panel.Children().Each(func(_ int, item *goquery.Selection) {
		id, _ := item.Attr("id")
		class, _ := item.Attr("class")
		itemID, _ := item.Attr("data-item-id")
		repos = append(repos, LinkedRepository{
			ID:          id,
			Class:       class,
			ItemID:      itemID,
			Description: strings.TrimSpace(item.Find("a h3").First().Text()),
		})
	})
	return repos, nil
}

// SearchStashRepositories searches the repositories of a linked Bitbucket
// Server. The picker payload is returned undecoded.
func (c *Client) SearchStashRepositories(ctx context.Context, serverKey, query string) (json.RawMessage, error) {
	params := c.stashSearchParams(serverKey)
	params.Set("query", query)

	resp, err := c.api.Get(ctx, stashReposPath, params, nil)
	if err != nil {
		return nil, fmt.Errorf("search stash repositories: %w", err)
	}
	var raw json.RawMessage
	if err := client.DecodeJSON(resp, &raw); err != nil {
		return nil, fmt.Errorf("search stash repositories: %w", err)
	}
	return raw, nil
}

// SearchStashBranches lists the branches of a repository on a linked
// Bitbucket Server. The picker payload is returned undecoded.
func (c *Client) SearchStashBranches(ctx context.Context, serverKey, repositoryURL string) (json.RawMessage, error) {
	params := c.stashSearchParams(serverKey)
	params.Set("repositoryUrl", repositoryURL)

	resp, err := c.api.Get(ctx, stashBranchesPath, params, http.Header{"Accept": {browserAccept}})
	if err != nil {
		return nil, fmt.Errorf("search stash branches: %w", err)
	}
	var raw json.RawMessage
	if err := client.DecodeJSON(resp, &raw); err != nil {
		return nil, fmt.Errorf("search stash branches: %w", err)
	}
	return raw, nil
}

func (c *Client) stashSearchParams(serverKey string) url.Values {
	return url.Values{
		"serverKey": {serverKey},
		"start":     {"0"},
		"limit":     {stashSearchLimit},
		"_":         {strconv.FormatInt(c.now().UnixMilli(), 10)},
	}
}

// CreateLinkedStashRepository links a Bitbucket Server repository.
func (c *Client) CreateLinkedStashRepository(ctx context.Context, repo StashRepository) error {
	if repo.URL == "" {
		return errors.New("create linked repository: repository url is required")
	}

	form := url.Values{
		"repositoryId":                    {"0"},
		"selectedRepository":              {stashRepositoryPluginID},
		"repository.stash.server":         {repo.ServerKey},
		"repository.stash.repositoryId":   {repo.RepositoryID},
		"repository.stash.projectKey":     {repo.ProjectKey},
		"repository.stash.repositorySlug": {repo.Slug},
		"repository.stash.repositoryUrl":  {repo.URL},
		"repository.stash.branch":         {repo.Branch},
		"bamboo.successReturnMode":        {"json-as-html"},
		"decorator":                       {"nothing"},
	}
	if err := c.postAction(ctx, createLinkedRepoAction, form); err != nil {
		return fmt.Errorf("create linked repository %s: %w", repo.URL, err)
	}
	c.logger.Info().Str("repository_url", repo.URL).Msg("Linked repository created")
	return nil
}
