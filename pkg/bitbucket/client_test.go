package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Sternrassler/atlassian-client/internal/testutil"
	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockServer) {
	t.Helper()

	mock := testutil.NewMockServer()
	t.Cleanup(mock.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.Username = "admin"
	cfg.Password = "admin"

	bb, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bb.Close() })
	return bb, mock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "bitbucket-client", cfg.Component)

	bb, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7990", bb.Transport().BaseURL())
}

func TestProjects(t *testing.T) {
	bb, mock := newTestClient(t)

	projects := make([]any, 12)
	for i := range projects {
		projects[i] = map[string]any{"id": i + 1, "key": fmt.Sprintf("P%d", i), "name": fmt.Sprintf("Project %d", i), "type": "NORMAL"}
	}
	mock.SetHandler(projectsPath, testutil.BitbucketPaged(projects))

	got, err := pagination.Collect(bb.Projects(context.Background(), ListOptions{Limit: 5}))
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.Equal(t, "P0", got[0].Key)
	assert.Equal(t, "P11", got[11].Key)

	requests := mock.RequestsFor(projectsPath)
	require.Len(t, requests, 4)
	for i, start := range []string{"0", "5", "10", "12"} {
		assert.Equal(t, start, requests[i].Query.Get("start"))
		assert.Equal(t, "5", requests[i].Query.Get("limit"))
	}
}

func TestProjects_DriftEndsCleanly(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetHandler(projectsPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"size": 1, "limit": 1, "start": 0, "isLastPage": false, "nextPageStart": 1,
			"values": []map[string]any{{"key": "ONLY"}},
		})
	})

	got, err := pagination.Collect(bb.Projects(context.Background(), ListOptions{Limit: 1}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, mock.GetRequestCount())
}

func TestProjects_Unauthorized(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetResponse(projectsPath, testutil.NewJSONResponse(http.StatusUnauthorized,
		`{"errors":[{"context":null,"message":"Authentication failed. Please check your credentials and try again.","exceptionName":"com.atlassian.bitbucket.auth.IncorrectPasswordAuthenticationException"}]}`))

	_, err := pagination.Collect(bb.Projects(context.Background(), ListOptions{}))
	require.Error(t, err)

	var fetchErr *pagination.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 0, fetchErr.StartIndex)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Authentication failed. Please check your credentials and try again.", apiErr.Message)
}

func TestProjectExists(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetResponse(projectsPath+"/OPS", testutil.NewJSONResponse(http.StatusOK, `{"id":1,"key":"OPS","name":"Operations"}`))
	mock.SetResponse(projectsPath+"/DOWN", testutil.NewServerErrorResponse())

	exists, err := bb.ProjectExists(context.Background(), "OPS")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = bb.ProjectExists(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = bb.ProjectExists(context.Background(), "DOWN")
	assert.Error(t, err)
}

func TestProjectAvatarURL(t *testing.T) {
	bb, mock := newTestClient(t)

	avatar, err := bb.ProjectAvatarURL("~JDOE")
	require.NoError(t, err)
	assert.Equal(t, mock.URL()+"/rest/api/latest/projects/~JDOE/avatar.png", avatar)
}

func groupItems(names ...string) []any {
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = map[string]any{"name": name, "deletable": true}
	}
	return out
}

func TestGroups(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetHandler(groupsPath, testutil.BitbucketPaged(groupItems("dev", "dev-leads", "stash-users")))

	got, err := pagination.Collect(bb.Groups(context.Background(), "dev", ListOptions{Limit: 2}))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "dev", mock.LastRequest().Query.Get("filter"))
}

func TestGroupByName_ExactMatch(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetHandler(groupsPath, testutil.BitbucketPaged(groupItems("dev-leads", "dev", "devops")))

	group, err := bb.GroupByName(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "dev", group.Name)

	exists, err := bb.GroupExists(context.Background(), "dev")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGroupByName_SubstringOnly(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetHandler(groupsPath, testutil.BitbucketPaged(groupItems("dev-leads", "devops")))

	_, err := bb.GroupByName(context.Background(), "dev")
	assert.ErrorIs(t, err, ErrGroupNotFound)

	exists, err := bb.GroupExists(context.Background(), "dev")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGroupExists_ListingFails(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetResponse(groupsPath, testutil.NewJSONResponse(http.StatusForbidden,
		`{"errors":[{"message":"You are not permitted to access this resource"}]}`))

	exists, err := bb.GroupExists(context.Background(), "dev")
	require.Error(t, err)
	assert.False(t, exists)
	assert.Equal(t, http.StatusForbidden, client.StatusCode(err))
}

func TestUsers(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetHandler(usersPath, testutil.BitbucketPaged([]any{
		map[string]any{"id": 1, "name": "jdoe", "slug": "jdoe", "displayName": "Jane Doe", "active": true},
		map[string]any{"id": 2, "name": "rroe", "slug": "rroe", "displayName": "Richard Roe", "active": false},
	}))

	got, err := pagination.Take(bb.Users(context.Background(), "", ListOptions{}), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].DisplayName)
	assert.Empty(t, mock.LastRequest().Query.Get("filter"))
}

func TestGroupMembership(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetResponse(groupAddUserPath, testutil.MockResponse{StatusCode: http.StatusOK})
	mock.SetResponse(groupRemoveUserPath, testutil.MockResponse{StatusCode: http.StatusOK})

	require.NoError(t, bb.AddUserToGroup(context.Background(), "dev", "jdoe"))
	add := mock.RequestsFor(groupAddUserPath)[0]
	assert.Equal(t, http.MethodPost, add.Method)
	assert.JSONEq(t, `{"context":"dev","itemName":"jdoe"}`, add.Body)

	require.NoError(t, bb.RemoveUserFromGroup(context.Background(), "dev", "jdoe"))
	assert.JSONEq(t, `{"context":"dev","itemName":"jdoe"}`, mock.RequestsFor(groupRemoveUserPath)[0].Body)
}

func TestGroupMembership_UnknownUser(t *testing.T) {
	bb, mock := newTestClient(t)
	mock.SetResponse(groupAddUserPath, testutil.NewJSONResponse(http.StatusNotFound,
		`{"errors":[{"message":"No such user ghost"}]}`))

	err := bb.AddUserToGroup(context.Background(), "dev", "ghost")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
	assert.Contains(t, err.Error(), "No such user ghost")
}
