package bitbucket

// Link is one entry of a resource's links map.
type Link struct {
	Href string `json:"href"`
	Name string `json:"name,omitempty"`
}

// Project is a Bitbucket Server project.
type Project struct {
	ID          int64             `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Public      bool              `json:"public"`
	Type        string            `json:"type"`
	Links       map[string][]Link `json:"links,omitempty"`
}

// Group is a user group as listed by the admin API.
type Group struct {
	Name      string `json:"name"`
	Deletable bool   `json:"deletable"`
}

// User is a user as listed by the admin API.
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	DisplayName   string `json:"displayName"`
	EmailAddress  string `json:"emailAddress,omitempty"`
	Active        bool   `json:"active"`
	Type          string `json:"type"`
	Deletable     bool   `json:"deletable"`
	DirectoryName string `json:"directoryName,omitempty"`
}

// membership is the body of the add-user and remove-user requests.
type membership struct {
	Context  string `json:"context"`
	ItemName string `json:"itemName"`
}
