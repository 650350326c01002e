package linear

import "time"

// User is a Linear workspace member.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Team is a Linear team.
type Team struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// WorkflowState is a team's issue state.
type WorkflowState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	Position float64 `json:"position,omitempty"`
}

// Project is a Linear project.
type Project struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	State    string  `json:"state,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// Label is an issue label.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is an issue comment.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

// Attachment links an external resource to an issue.
type Attachment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Issue is a Linear issue.
type Issue struct {
	ID            string         `json:"id"`
	Identifier    string         `json:"identifier"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Priority      int            `json:"priority"`
	PriorityLabel string         `json:"priorityLabel,omitempty"`
	URL           string         `json:"url"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	State         *WorkflowState `json:"state,omitempty"`
	Assignee      *User          `json:"assignee,omitempty"`
	Team          *Team          `json:"team,omitempty"`
	Project       *Project       `json:"project,omitempty"`
	Labels        *struct {
		Nodes []Label `json:"nodes"`
	} `json:"labels,omitempty"`
	Comments *struct {
		Nodes []Comment `json:"nodes"`
	} `json:"comments,omitempty"`
}

// StateName returns the issue's state name or an empty string.
func (i Issue) StateName() string {
	if i.State == nil {
		return ""
	}
	return i.State.Name
}

// AssigneeName returns the assignee's display name, falling back to name.
func (i Issue) AssigneeName() string {
	if i.Assignee == nil {
		return ""
	}
	if i.Assignee.DisplayName != "" {
		return i.Assignee.DisplayName
	}
	return i.Assignee.Name
}

// LabelNames returns the names of the issue's labels.
func (i Issue) LabelNames() []string {
	if i.Labels == nil {
		return nil
	}
	names := make([]string, 0, len(i.Labels.Nodes))
	for _, l := range i.Labels.Nodes {
		names = append(names, l.Name)
	}
	return names
}
