package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/Sternrassler/atlassian-client/internal/credential"
	"github.com/Sternrassler/atlassian-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bambooPlans     = "/rest/api/latest/plan"
	bambooQueue     = "/rest/api/latest/queue"
	bitbucketGroups = "/rest/api/latest/admin/groups"
)

type harness struct {
	app    *app
	store  *credential.Store
	mock   *testutil.MockServer
	config string
}

func newHarness(t *testing.T, extra string) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	mock := testutil.NewMockServer()
	t.Cleanup(mock.Close)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf("log_level: disabled\nbamboo:\n  url: %s\n%sbitbucket:\n  url: %s\n", mock.URL(), extra, mock.URL())
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	store := credential.NewStore(keyring.NewArrayKeyring(nil))
	a := newApp()
	a.openStore = func(string) (*credential.Store, error) { return store, nil }

	return &harness{app: a, store: store, mock: mock, config: path}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand(h.app)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.config}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func lines(t *testing.T, out string) []map[string]any {
	t.Helper()

	var records []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), scanner.Text())
		records = append(records, rec)
	}
	return records
}

func planItems(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"key": fmt.Sprintf("PROJ-P%d", i), "name": fmt.Sprintf("Plan %d", i)}
	}
	return out
}

func TestBambooPlans(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetHandler(bambooPlans, testutil.BambooCollection("plans", "plan", planItems(30)))

	out, err := h.run(t, "", "bamboo", "plans", "--page-size", "10")
	require.NoError(t, err)

	records := lines(t, out)
	require.Len(t, records, 30)
	assert.Equal(t, "PROJ-P0", records[0]["key"])
	assert.Equal(t, "PROJ-P29", records[29]["key"])
	// three full pages and the empty page that ends the listing
	assert.Len(t, h.mock.RequestsFor(bambooPlans), 4)
}

func TestBambooPlans_LimitStopsFetching(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetHandler(bambooPlans, testutil.BambooCollection("plans", "plan", planItems(100)))

	out, err := h.run(t, "", "--limit", "12", "bamboo", "plans", "--page-size", "10")
	require.NoError(t, err)

	assert.Len(t, lines(t, out), 12)
	reqs := h.mock.RequestsFor(bambooPlans)
	require.Len(t, reqs, 2)
	assert.Equal(t, "10", reqs[1].Query.Get("start-index"))
}

func TestBambooPlans_ServerError(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetResponse(bambooPlans, testutil.NewServerErrorResponse())

	out, err := h.run(t, "", "bamboo", "plans")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "500")
}

func TestBambooQueue(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetResponse(bambooQueue, testutil.NewJSONResponse(200,
		`{"queuedBuilds":{"size":1,"queuedBuild":[{"planKey":"PROJ-PLAN","buildNumber":7,"buildResultKey":"PROJ-PLAN-7"}]}}`))

	out, err := h.run(t, "", "bamboo", "queue")
	require.NoError(t, err)

	records := lines(t, out)
	require.Len(t, records, 1)
	assert.EqualValues(t, 1, records[0]["size"])
}

func TestBambooBuilds_BranchNeedsPlan(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.run(t, "", "bamboo", "builds", "--branch", "main")
	assert.ErrorContains(t, err, "--branch requires --plan")
	assert.Zero(t, h.mock.GetRequestCount())
}

func TestBambooDeployments_Limit(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetResponse("/rest/api/latest/deploy/project/all", testutil.NewJSONResponse(200,
		`[{"id":1,"name":"Web"},{"id":2,"name":"API"},{"id":3,"name":"Docs"}]`))

	out, err := h.run(t, "", "-n", "2", "bamboo", "deployments")
	require.NoError(t, err)

	records := lines(t, out)
	require.Len(t, records, 2)
	assert.Equal(t, "API", records[1]["name"])
}

func TestBitbucketGroups(t *testing.T) {
	h := newHarness(t, "")
	h.mock.SetHandler(bitbucketGroups, testutil.BitbucketPaged([]any{
		map[string]any{"name": "developers", "deletable": true},
		map[string]any{"name": "dev-leads", "deletable": true},
	}))

	out, err := h.run(t, "", "bitbucket", "groups", "--filter", "dev")
	require.NoError(t, err)

	assert.Len(t, lines(t, out), 2)
	assert.Equal(t, "dev", h.mock.LastRequest().Query.Get("filter"))
}

func TestPasswordFromKeyring(t *testing.T) {
	h := newHarness(t, "  username: admin\n")
	require.NoError(t, h.store.Set(credential.Key("bamboo", "admin"), "s3cret"))
	h.mock.SetHandler(bambooPlans, testutil.BambooCollection("plans", "plan", planItems(1)))

	_, err := h.run(t, "", "bamboo", "plans")
	require.NoError(t, err)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:s3cret"))
	assert.Equal(t, want, h.mock.LastRequest().Header.Get("Authorization"))
}

func TestPasswordMissingFromKeyring(t *testing.T) {
	h := newHarness(t, "  username: admin\n")
	h.mock.SetHandler(bambooPlans, testutil.BambooCollection("plans", "plan", planItems(1)))

	_, err := h.run(t, "", "bamboo", "plans")
	require.NoError(t, err)
	assert.Empty(t, h.mock.LastRequest().Header.Get("Authorization"))
}

func TestCredentialsSetAndDelete(t *testing.T) {
	h := newHarness(t, "  username: admin\n")

	_, err := h.run(t, "s3cret\n", "credentials", "set", "bamboo")
	require.NoError(t, err)

	got, err := h.store.Get(credential.Key("bamboo", "admin"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = h.run(t, "", "credentials", "delete", "bamboo")
	require.NoError(t, err)

	_, err = h.store.Get(credential.Key("bamboo", "admin"))
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestCredentialsSet_Errors(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.run(t, "s3cret\n", "credentials", "set", "bamboo")
	assert.ErrorContains(t, err, "no username configured")

	_, err = h.run(t, "s3cret\n", "credentials", "set", "jira")
	assert.ErrorContains(t, err, "unknown server")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 8085, cfg.Bamboo.Port)
	assert.Equal(t, 7990, cfg.Bitbucket.Port)
	assert.Equal(t, "http://localhost", cfg.Bitbucket.Host)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bamboo:\n  url: http://file.example.com\n  username: fromfile\n"), 0o600))
	t.Setenv("ATL_BAMBOO_URL", "http://env.example.com")
	t.Setenv("ATL_BITBUCKET_PASSWORD", "pw")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example.com", cfg.Bamboo.URL)
	assert.Equal(t, "fromfile", cfg.Bamboo.Username)
	assert.Equal(t, "pw", cfg.Bitbucket.Password)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
