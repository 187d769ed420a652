package bamboo

import (
	"context"
	"net/http"
	"testing"

	"github.com/Sternrassler/atlassian-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkedReposPage = `<html><body>
<div id="panel-editor-setup">
  <div id="panel-editor-list">
    <ul>
      <li id="item-1" class="item active" data-item-id="98305"><a href="#"><h3 class="item-title"> ansible-roles </h3></a></li>
      <li id="item-2" class="item" data-item-id="98306"><a href="#"><h3 class="item-title">website</h3></a></li>
    </ul>
  </div>
</div>
</body></html>`

func TestLinkedRepositories(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(linkedReposAction, testutil.NewHTMLResponse(linkedReposPage))

	repos, err := bc.LinkedRepositories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LinkedRepository{
		{ID: "item-1", Class: "item active", ItemID: "98305", Description: "ansible-roles"},
		{ID: "item-2", Class: "item", ItemID: "98306", Description: "website"},
	}, repos)
}

func TestLinkedRepositories_NoPanel(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(linkedReposAction, testutil.NewHTMLResponse(`<html><body><form id="loginForm"></form></body></html>`))

	_, err := bc.LinkedRepositories(context.Background())
	assert.ErrorIs(t, err, ErrRepositoryListNotFound)
}

func TestSearchStashRepositories(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(stashReposPath, testutil.NewJSONResponse(http.StatusOK, `{"size":1,"values":[{"slug":"website"}]}`))

	raw, err := bc.SearchStashRepositories(context.Background(), "8bdedff1", "web")
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":1,"values":[{"slug":"website"}]}`, string(raw))

	q := mock.LastRequest().Query
	assert.Equal(t, "8bdedff1", q.Get("serverKey"))
	assert.Equal(t, "web", q.Get("query"))
	assert.Equal(t, "0", q.Get("start"))
	assert.Equal(t, "100", q.Get("limit"))
	assert.Equal(t, "1525201658128", q.Get("_"))
}

func TestSearchStashBranches(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(stashBranchesPath, testutil.NewJSONResponse(http.StatusOK, `{"values":[{"displayId":"main"}]}`))

	raw, err := bc.SearchStashBranches(context.Background(), "8bdedff1", "ssh://git@bitbucket:7999/ops/website.git")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "main")

	last := mock.LastRequest()
	assert.Equal(t, stashBranchesPath, last.Path)
	assert.Equal(t, "ssh://git@bitbucket:7999/ops/website.git", last.Query.Get("repositoryUrl"))
	assert.Contains(t, last.Header.Get("Accept"), "text/html")
}

func TestCreateLinkedStashRepository(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(createLinkedRepoAction, testutil.NewHTMLResponse(`{"status":"OK"}`))

	err := bc.CreateLinkedStashRepository(context.Background(), StashRepository{
		ServerKey:    "8bdedff1",
		RepositoryID: "223",
		ProjectKey:   "OPS",
		Slug:         "website",
		URL:          "ssh://git@bitbucket:7999/ops/website.git",
		Branch:       "development",
	})
	require.NoError(t, err)

	form := mock.LastRequest().Form
	assert.Equal(t, "ssh://git@bitbucket:7999/ops/website.git", form.Get("repository.stash.repositoryUrl"))
	assert.Equal(t, "website", form.Get("repository.stash.repositorySlug"))
	assert.Equal(t, "development", form.Get("repository.stash.branch"))
	assert.Equal(t, stashRepositoryPluginID, form.Get("selectedRepository"))
	assert.Equal(t, "json-as-html", form.Get("bamboo.successReturnMode"))
}

func TestCreateLinkedStashRepository_RequiresURL(t *testing.T) {
	bc, mock := newTestClient(t)

	err := bc.CreateLinkedStashRepository(context.Background(), StashRepository{Slug: "website"})
	require.Error(t, err)
	assert.Zero(t, mock.GetRequestCount())
}
