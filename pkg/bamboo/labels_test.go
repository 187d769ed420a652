package bamboo

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/Sternrassler/atlassian-client/internal/testutil"
	"github.com/Sternrassler/atlassian-client/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelPageHTML renders a builds-for-label page with one row per build key.
func labelPageHTML(buildKeys []string, hasNext bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="aui"><tbody>`)
	for _, key := range buildKeys {
		parts := strings.Split(key, "-")
		project := parts[0]
		plan := parts[0] + "-" + parts[1]
		fmt.Fprintf(&b, `<tr><td><span class="aui-icon aui-icon-small aui-iconfont-approve">Successful</span>
<a href="/browse/%s">Project</a> &rsaquo; <a href="/browse/%s">Plan</a> &rsaquo; <a href="/browse/%s?foo=bar">#%s</a></td>
<td><span class="aui-icon aui-icon-small">x</span></td></tr>`, project, plan, key, parts[2])
	}
	b.WriteString(`</tbody></table>`)
	if hasNext {
		b.WriteString(`<a class="nextLink" href="?pageIndex=next">Next &raquo;</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// labelServer serves pages[label][pageIndex-1].
func labelServer(mock *testutil.MockServer, pages map[string][][]string) {
	mock.SetHandler(buildsForLabelAction, func(w http.ResponseWriter, r *http.Request) {
		label := r.URL.Query().Get("labelName")
		index, _ := strconv.Atoi(r.URL.Query().Get("pageIndex"))
		labelPages := pages[label]
		if index < 1 || index > len(labelPages) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(labelPageHTML(nil, false)))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(labelPageHTML(labelPages[index-1], index < len(labelPages))))
	})
}

func TestBuildsByLabel(t *testing.T) {
	bc, mock := newTestClient(t)
	labelServer(mock, map[string][][]string{
		"nightly": {
			{"PROJ-PLAN-1", "PROJ-PLAN-2"},
			{"OPS-DEPLOY-9"},
		},
		"release": {
			{"PROJ-PLAN-2"},
		},
	})

	got, err := pagination.Collect(bc.BuildsByLabel(context.Background(), "nightly", "release"))
	require.NoError(t, err)

	assert.Equal(t, []BuildRef{
		{Label: "nightly", ProjectKey: "PROJ", PlanKey: "PROJ-PLAN", BuildKey: "PROJ-PLAN-1"},
		{Label: "nightly", ProjectKey: "PROJ", PlanKey: "PROJ-PLAN", BuildKey: "PROJ-PLAN-2"},
		{Label: "nightly", ProjectKey: "OPS", PlanKey: "OPS-DEPLOY", BuildKey: "OPS-DEPLOY-9"},
		{Label: "release", ProjectKey: "PROJ", PlanKey: "PROJ-PLAN", BuildKey: "PROJ-PLAN-2"},
	}, got)

	requests := mock.RequestsFor(buildsForLabelAction)
	require.Len(t, requests, 3)
	assert.Equal(t, "1", requests[0].Query.Get("pageIndex"))
	assert.Equal(t, "2", requests[1].Query.Get("pageIndex"))
	assert.Equal(t, "release", requests[2].Query.Get("labelName"))
	assert.Equal(t, "text/html", requests[0].Header.Get("Accept"))
}

func TestBuildsByLabel_EarlyBreak(t *testing.T) {
	bc, mock := newTestClient(t)
	labelServer(mock, map[string][][]string{
		"nightly": {{"PROJ-PLAN-1", "PROJ-PLAN-2"}, {"PROJ-PLAN-3"}},
	})

	got, err := pagination.Take(bc.BuildsByLabel(context.Background(), "nightly"), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestBuildsByLabel_ErrorStopsSearch(t *testing.T) {
	bc, mock := newTestClient(t)
	mock.SetResponse(buildsForLabelAction, testutil.MockResponse{StatusCode: http.StatusUnauthorized})

	got, err := pagination.Collect(bc.BuildsByLabel(context.Background(), "a", "b"))
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Contains(t, err.Error(), `builds for label "a" page 1`)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestBuildsByLabels(t *testing.T) {
	bc, mock := newTestClient(t)
	labelServer(mock, map[string][][]string{
		"nightly": {{"PROJ-PLAN-1"}, {"PROJ-PLAN-2"}},
		"release": {{"PROJ-PLAN-2"}},
		"empty":   {{}},
	})

	got, err := bc.BuildsByLabels(context.Background(), pagination.DefaultConfig(), []string{"nightly", "release", "empty"})
	require.NoError(t, err)
	assert.Len(t, got["nightly"], 2)
	assert.Len(t, got["release"], 1)
	assert.Empty(t, got["empty"])
}
