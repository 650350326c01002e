package linear

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type nodes[T any] struct {
	Nodes []T `json:"nodes"`
}

// Viewer returns the authenticated user.
func (c *Client) Viewer(ctx context.Context) (*User, error) {
	var resp struct {
		Viewer User `json:"viewer"`
	}
	if err := c.Do(ctx, viewerQuery, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Viewer, nil
}

// Teams lists the workspace's teams.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp struct {
		Teams nodes[Team] `json:"teams"`
	}
	if err := c.Do(ctx, teamsQuery, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams.Nodes, nil
}

// ResolveTeam finds a team by key, id or name.
func (c *Client) ResolveTeam(ctx context.Context, ref string) (*Team, error) {
	teams, err := c.Teams(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		if strings.EqualFold(t.Key, ref) || t.ID == ref || strings.EqualFold(t.Name, ref) {
			return &t, nil
		}
	}
	return nil, errors.Errorf("team %q not found", ref)
}

// States lists the workflow states of a team ordered by position.
func (c *Client) States(ctx context.Context, teamID string) ([]WorkflowState, error) {
	var resp struct {
		WorkflowStates nodes[WorkflowState] `json:"workflowStates"`
	}
	if err := c.Do(ctx, statesQuery, map[string]any{"teamId": teamID}, &resp); err != nil {
		return nil, err
	}
	states := resp.WorkflowStates.Nodes
	sortStates(states)
	return states, nil
}

func sortStates(states []WorkflowState) {
	sort.SliceStable(states, func(i, j int) bool { return states[i].Position < states[j].Position })
}

// ResolveState finds a team's state by name.
func (c *Client) ResolveState(ctx context.Context, teamID, name string) (*WorkflowState, error) {
	states, err := c.States(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for _, s := range states {
		if strings.EqualFold(s.Name, name) || s.ID == name {
			return &s, nil
		}
	}
	return nil, errors.Errorf("state %q not found", name)
}

// Projects lists up to limit projects, most recently updated first.
func (c *Client) Projects(ctx context.Context, limit int) ([]Project, error) {
	var resp struct {
		Projects nodes[Project] `json:"projects"`
	}
	if err := c.Do(ctx, projectsQuery, map[string]any{"first": clampLimit(limit)}, &resp); err != nil {
		return nil, err
	}
	return resp.Projects.Nodes, nil
}

// ResolveAssignee turns "me", an email or a user id into a user id.
func (c *Client) ResolveAssignee(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.EqualFold(ref, "me"):
		viewer, err := c.Viewer(ctx)
		if err != nil {
			return "", err
		}
		return viewer.ID, nil
	case strings.Contains(ref, "@"):
		var resp struct {
			Users nodes[User] `json:"users"`
		}
		if err := c.Do(ctx, usersByEmailQuery, map[string]any{"email": ref}, &resp); err != nil {
			return "", err
		}
		if len(resp.Users.Nodes) == 0 {
			return "", errors.Errorf("no user with email %s", ref)
		}
		return resp.Users.Nodes[0].ID, nil
	default:
		return ref, nil
	}
}

// ResolveLabels maps label names to ids. Unknown names are an error.
func (c *Client) ResolveLabels(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var resp struct {
		IssueLabels nodes[Label] `json:"issueLabels"`
	}
	if err := c.Do(ctx, labelsQuery, nil, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	var missing []string
	for _, name := range names {
		found := false
		for _, l := range resp.IssueLabels.Nodes {
			if strings.EqualFold(l.Name, name) {
				ids = append(ids, l.ID)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("unknown labels: %s", strings.Join(missing, ", "))
	}
	return ids, nil
}

// IssueFilter narrows an issue listing.
type IssueFilter struct {
	Team     string
	Assignee string
	State    string
	Project  string
	Limit    int
}

// GraphQL renders the filter as an IssueFilter input object.
func (f IssueFilter) GraphQL() map[string]any {
	filter := map[string]any{}
	if f.Team != "" {
		filter["team"] = map[string]any{"key": map[string]any{"eqIgnoreCase": f.Team}}
	}
	switch {
	case f.Assignee == "":
	case strings.EqualFold(f.Assignee, "me"):
		filter["assignee"] = map[string]any{"isMe": map[string]any{"eq": true}}
	case strings.Contains(f.Assignee, "@"):
		filter["assignee"] = map[string]any{"email": map[string]any{"eqIgnoreCase": f.Assignee}}
	default:
		filter["assignee"] = map[string]any{"id": map[string]any{"eq": f.Assignee}}
	}
	if f.State != "" {
		filter["state"] = map[string]any{"name": map[string]any{"eqIgnoreCase": f.State}}
	}
	if f.Project != "" {
		filter["project"] = map[string]any{"name": map[string]any{"eqIgnoreCase": f.Project}}
	}
	return filter
}

// Issues lists issues matching filter, most recently updated first.
func (c *Client) Issues(ctx context.Context, filter IssueFilter) ([]Issue, error) {
	var resp struct {
		Issues nodes[Issue] `json:"issues"`
	}
	vars := map[string]any{"filter": filter.GraphQL(), "first": clampLimit(filter.Limit)}
	if err := c.Do(ctx, issuesQuery, vars, &resp); err != nil {
		return nil, err
	}
	return resp.Issues.Nodes, nil
}

// Issue fetches one issue, with comments, by identifier (ENG-123) or id.
func (c *Client) Issue(ctx context.Context, id string) (*Issue, error) {
	var resp struct {
		Issue *Issue `json:"issue"`
	}
	if err := c.Do(ctx, issueQuery, map[string]any{"id": id}, &resp); err != nil {
		return nil, err
	}
	if resp.Issue == nil {
		return nil, errors.Errorf("issue %s not found", id)
	}
	return resp.Issue, nil
}

// Search runs a full text issue search.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]Issue, error) {
	var resp struct {
		SearchIssues nodes[Issue] `json:"searchIssues"`
	}
	if err := c.Do(ctx, searchQuery, map[string]any{"term": term, "first": clampLimit(limit)}, &resp); err != nil {
		return nil, err
	}
	return resp.SearchIssues.Nodes, nil
}

// IssueInput holds the fields for creating or updating an issue. Empty fields
// are left out of the request.
type IssueInput struct {
	TeamID      string
	Title       string
	Description string
	Priority    *int
	AssigneeID  string
	StateID     string
	ProjectID   string
	LabelIDs    []string
}

// GraphQL renders the input object.
func (in IssueInput) GraphQL() map[string]any {
	m := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	set("teamId", in.TeamID)
	set("title", in.Title)
	set("description", in.Description)
	set("assigneeId", in.AssigneeID)
	set("stateId", in.StateID)
	set("projectId", in.ProjectID)
	if in.Priority != nil {
		m["priority"] = *in.Priority
	}
	if len(in.LabelIDs) > 0 {
		m["labelIds"] = in.LabelIDs
	}
	return m
}

// ValidatePriority checks Linear's 0 (none) to 4 (low) priority range.
func ValidatePriority(p int) error {
	if p < 0 || p > 4 {
		return errors.Errorf("priority must be between 0 and 4, got %d", p)
	}
	return nil
}

type issuePayload struct {
	Success bool   `json:"success"`
	Issue   *Issue `json:"issue"`
}

// CreateIssue creates an issue.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*Issue, error) {
	if in.TeamID == "" || in.Title == "" {
		return nil, errors.New("team and title are required to create an issue")
	}
	var resp struct {
		IssueCreate issuePayload `json:"issueCreate"`
	}
	if err := c.Do(ctx, issueCreateMutation, map[string]any{"input": in.GraphQL()}, &resp); err != nil {
		return nil, err
	}
	if !resp.IssueCreate.Success || resp.IssueCreate.Issue == nil {
		return nil, errors.New("linear did not create the issue")
	}
	return resp.IssueCreate.Issue, nil
}

// UpdateIssue applies in to the issue with the given id.
func (c *Client) UpdateIssue(ctx context.Context, id string, in IssueInput) (*Issue, error) {
	input := in.GraphQL()
	if len(input) == 0 {
		return nil, errors.New("nothing to update")
	}
	var resp struct {
		IssueUpdate issuePayload `json:"issueUpdate"`
	}
	if err := c.Do(ctx, issueUpdateMutation, map[string]any{"id": id, "input": input}, &resp); err != nil {
		return nil, err
	}
	if !resp.IssueUpdate.Success || resp.IssueUpdate.Issue == nil {
		return nil, errors.Errorf("linear did not update %s", id)
	}
	return resp.IssueUpdate.Issue, nil
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, issueID, body string) (*Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("comment body is empty")
	}
	var resp struct {
		CommentCreate struct {
			Success bool     `json:"success"`
			Comment *Comment `json:"comment"`
		} `json:"commentCreate"`
	}
	vars := map[string]any{"input": map[string]any{"issueId": issueID, "body": body}}
	if err := c.Do(ctx, commentCreateMutation, vars, &resp); err != nil {
		return nil, err
	}
	if !resp.CommentCreate.Success || resp.CommentCreate.Comment == nil {
		return nil, errors.Errorf("linear did not add the comment to %s", issueID)
	}
	return resp.CommentCreate.Comment, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 250:
		return 250
	default:
		return limit
	}
}
