package bamboo

import (
	"context"
	"iter"
	"net/url"
	"strings"

	"github.com/Sternrassler/atlassian-client/pkg/pagination"
)

// BuildQuery filters result listings.
type BuildQuery struct {
	ListOptions

	// PlanKey restricts Builds to one plan; empty means the latest result
	// of every plan.
	PlanKey string
	Labels  []string
	Expand  []string
}

func (q BuildQuery) values() url.Values {
	v := url.Values{}
	if expand := ResultExpand(q.Expand); expand != "" {
		v.Set("expand", expand)
	}
	if len(q.Labels) > 0 {
		v.Set("label", strings.Join(q.Labels, ","))
	}
	return v
}

// Builds lists build results, either for q.PlanKey or the latest result
// of every plan.
func (c *Client) Builds(ctx context.Context, q BuildQuery) iter.Seq2[Result, error] {
	if q.PlanKey == "" {
		return list[Result](ctx, c, resultsPath, q.values(), q.ListOptions, "results", "result")
	}
	return listTemplate[Result](ctx, c, resultPath, map[string]string{"key": q.PlanKey}, q.values(), q.ListOptions, "results", "result")
}

// BuildResults lists the results of a plan, of one build of a plan when
// buildNumber is set, or of all plans when planKey is empty.
func (c *Client) BuildResults(ctx context.Context, planKey, buildNumber string, q BuildQuery) iter.Seq2[Result, error] {
	key := "all"
	if planKey != "" {
		key = planKey
		if buildNumber != "" {
			key = planKey + "-" + buildNumber
		}
	}
	return listTemplate[Result](ctx, c, resultPath, map[string]string{"key": key}, q.values(), q.ListOptions, "results", "result")
}

// Build states accepted by BranchResultQuery.
const (
	BuildStateSuccessful = "Successful"
	BuildStateFailed     = "Failed"
	BuildStateUnknown    = "Unknown"
)

// BranchResultQuery filters plan branch results.
type BranchResultQuery struct {
	ListOptions

	Expand           []string
	Labels           []string
	IssueKeys        []string
	Favorite         bool
	IncludeAllStates bool
	Continuable      bool
	BuildState       string
}

func (q BranchResultQuery) values() (url.Values, error) {
	v := url.Values{}
	if expand := ResultExpand(q.Expand); expand != "" {
		v.Set("expand", expand)
	}
	if q.Favorite {
		v.Set("favorite", "true")
	}
	if len(q.Labels) > 0 {
		v.Set("label", strings.Join(q.Labels, ","))
	}
	if len(q.IssueKeys) > 0 {
		v.Set("issueKey", strings.Join(q.IssueKeys, ","))
	}
	if q.IncludeAllStates {
		v.Set("includeAllStates", "true")
	}
	if q.Continuable {
		v.Set("continuable", "true")
	}
	switch q.BuildState {
	case "":
	case BuildStateSuccessful, BuildStateFailed, BuildStateUnknown:
		v.Set("build_state", q.BuildState)
	default:
		return nil, ErrInvalidBuildState
	}
	return v, nil
}

// BranchResults lists the results of one branch of a plan. An invalid
// BuildState fails before any request is made.
func (c *Client) BranchResults(ctx context.Context, planKey, branch string, q BranchResultQuery) iter.Seq2[Result, error] {
	query, err := q.values()
	if err != nil {
		return pagination.Fail[Result](err)
	}
	vars := map[string]string{"key": planKey, "branch": branch}
	return listTemplate[Result](ctx, c, branchResultPath, vars, query, q.ListOptions, "results", "result")
}
