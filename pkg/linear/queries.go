package linear

const issueFields = `
  id
  identifier
  title
  description
  priority
  priorityLabel
  url
  createdAt
  updatedAt
  state { id name type }
  assignee { id name displayName email }
  team { id key name }
  project { id name }
  labels { nodes { id name } }
`

const viewerQuery = `query Viewer {
  viewer { id name displayName email }
}`

const teamsQuery = `query Teams {
  teams(first: 100) { nodes { id key name } }
}`

const statesQuery = `query States($teamId: ID!) {
  workflowStates(filter: { team: { id: { eq: $teamId } } }, first: 100) {
    nodes { id name type position }
  }
}`

const projectsQuery = `query Projects($first: Int!) {
  projects(first: $first, orderBy: updatedAt) {
    nodes { id name state progress url }
  }
}`

const labelsQuery = `query Labels {
  issueLabels(first: 250) { nodes { id name } }
}`

const usersByEmailQuery = `query UserByEmail($email: String!) {
  users(filter: { email: { eq: $email } }) { nodes { id name displayName email } }
}`

const issuesQuery = `query Issues($filter: IssueFilter, $first: Int!) {
  issues(filter: $filter, first: $first, orderBy: updatedAt) {
    nodes {` + issueFields + `}
  }
}`

const issueQuery = `query Issue($id: String!) {
  issue(id: $id) {` + issueFields + `
    comments(first: 50) { nodes { id body createdAt user { id name displayName } } }
  }
}`

const searchQuery = `query Search($term: String!, $first: Int!) {
  searchIssues(term: $term, first: $first) {
    nodes {` + issueFields + `}
  }
}`

const issueCreateMutation = `mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {` + issueFields + `}
  }
}`

const issueUpdateMutation = `mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
    issue {` + issueFields + `}
  }
}`

const commentCreateMutation = `mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) {
    success
    comment { id body createdAt user { id name displayName } }
  }
}`

const fileUploadMutation = `mutation FileUpload($contentType: String!, $filename: String!, $size: Int!) {
  fileUpload(contentType: $contentType, filename: $filename, size: $size) {
    success
    uploadFile {
      uploadUrl
      assetUrl
      headers { key value }
    }
  }
}`

const attachmentCreateMutation = `mutation AttachmentCreate($input: AttachmentCreateInput!) {
  attachmentCreate(input: $input) {
    success
    attachment { id title url }
  }
}`
