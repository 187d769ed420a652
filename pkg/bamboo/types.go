package bamboo

import "encoding/json"

// Link is the self link Bamboo attaches to most resources.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// KeyRef wraps a bare key, e.g. {"key": "PROJ-PLAN"}.
type KeyRef struct {
	Key string `json:"key"`
}

// Project is a build project.
type Project struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Link        Link   `json:"link"`
}

// Plan is a build plan.
type Plan struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	ShortKey    string `json:"shortKey"`
	ProjectKey  string `json:"projectKey"`
	ProjectName string `json:"projectName"`
	Type        string `json:"type"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
	Link        Link   `json:"link"`
}

// PlanBranch is a branch of a plan.
type PlanBranch struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	ShortKey    string `json:"shortKey"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	Link        Link   `json:"link"`
}

// PlanRef is the abbreviated plan embedded in a result.
type PlanRef struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	ShortKey  string `json:"shortKey"`
}

// Result is one build result. Expanded sections (artifacts, stages, ...)
// are kept undecoded in Raw.
type Result struct {
	Key            string   `json:"key"`
	ID             int64    `json:"id"`
	Number         int      `json:"number"`
	BuildNumber    int      `json:"buildNumber"`
	BuildResultKey string   `json:"buildResultKey"`
	PlanResultKey  *KeyRef  `json:"planResultKey,omitempty"`
	LifeCycleState string   `json:"lifeCycleState"`
	State          string   `json:"state"`
	BuildState     string   `json:"buildState"`
	Plan           *PlanRef `json:"plan,omitempty"`
	Link           Link     `json:"link"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the full document.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Result(p)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Environment is one deployment environment.
type Environment struct {
	ID                  int64  `json:"id"`
	Key                 KeyRef `json:"key"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	DeploymentProjectID int64  `json:"deploymentProjectId"`
	Position            int    `json:"position"`
	ConfigurationState  string `json:"configurationState"`
}

// DeploymentProject is a deployment project and its environments.
type DeploymentProject struct {
	ID           int64         `json:"id"`
	Key          KeyRef        `json:"key"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	PlanKey      KeyRef        `json:"planKey"`
	Environments []Environment `json:"environments"`
}

// EnvironmentResult is one deployment into an environment.
type EnvironmentResult struct {
	ID                    int64  `json:"id"`
	DeploymentVersionName string `json:"deploymentVersionName"`
	DeploymentState       string `json:"deploymentState"`
	LifeCycleState        string `json:"lifeCycleState"`
	StartedDate           int64  `json:"startedDate"`
	QueuedDate            int64  `json:"queuedDate"`
	ExecutedDate          int64  `json:"executedDate"`
	FinishedDate          int64  `json:"finishedDate"`
	ReasonSummary         string `json:"reasonSummary"`
}

// QueuedBuild is a build waiting in, or just added to, the build queue.
type QueuedBuild struct {
	PlanKey        string `json:"planKey"`
	BuildNumber    int    `json:"buildNumber"`
	BuildResultKey string `json:"buildResultKey"`
	TriggerReason  string `json:"triggerReason"`
	Link           Link   `json:"link"`
}

// BuildQueue is the server's build queue.
type BuildQueue struct {
	Size   int           `json:"size"`
	Builds []QueuedBuild `json:"builds"`
}

// ServerState is returned by the pause and resume operations.
type ServerState struct {
	State             string `json:"state"`
	ReindexInProgress bool   `json:"reindexInProgress"`
}

// BuildRef identifies a build found through a label search.
type BuildRef struct {
	Label      string `json:"label"`
	ProjectKey string `json:"projectKey"`
	PlanKey    string `json:"planKey"`
	BuildKey   string `json:"buildKey"`
}

// LinkedRepository is one entry of the linked repositories admin page.
type LinkedRepository struct {
	ID          string `json:"id"`
	Class       string `json:"class"`
	ItemID      string `json:"data-item-id"`
	Description string `json:"description"`
}

// ProjectPermissions selects the project permissions granted to a group.
type ProjectPermissions struct {
	Create bool
	Admin  bool
}

func (p ProjectPermissions) names() []string {
	names := []string{}
	if p.Create {
		names = append(names, "CREATE")
	}
	if p.Admin {
		names = append(names, "ADMINISTRATION")
	}
	return names
}

// StashRepository describes a Bitbucket Server repository to link.
type StashRepository struct {
	ServerKey    string
	RepositoryID string
	ProjectKey   string
	Slug         string
	URL          string
	Branch       string
}
