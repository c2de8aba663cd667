package jira

import "encoding/json"

// searchResponse is the top-level container for search results.
type searchResponse struct {
	Total      int        `json:"total"`
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO is a single issue in a search response. Fields stays raw so
// deployment-specific custom field identifiers can be resolved against
// FieldConfig at mapping time.
type IssueDTO struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// namedDTO covers the many {"id": ..., "name": ...} shapes Jira returns.
type namedDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type issueTypeDTO struct {
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

type statusDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	StatusCategory struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"statusCategory"`
}

type parentDTO struct {
	Key string `json:"key"`
}

type teamDTO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Title string `json:"title"`
}

// worklogResponse is the paginated worklog container for one issue.
type worklogResponse struct {
	Total      int          `json:"total"`
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Worklogs   []WorklogDTO `json:"worklogs"`
}

// WorklogDTO is one logged block of time.
type WorklogDTO struct {
	ID     string `json:"id"`
	Author struct {
		AccountID   string `json:"accountId"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Comment          string `json:"comment"`
	Started          string `json:"started"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
	IssueID          string `json:"issueId"`
}

// sprintResponse is the board sprint listing.
type sprintResponse struct {
	Values  []SprintDTO `json:"values"`
	IsLast  bool        `json:"isLast"`
	StartAt int         `json:"startAt"`
}

// SprintDTO is one sprint as returned by the agile API.
type SprintDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	CompleteDate  string `json:"completeDate"`
	OriginBoardID int64  `json:"originBoardId"`
}

// boardDTO is the agile board metadata.
type boardDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location struct {
		ProjectKey string `json:"projectKey"`
	} `json:"location"`
}

// boardConfigDTO carries the filter reference of a board.
type boardConfigDTO struct {
	ID     int64    `json:"id"`
	Filter namedDTO `json:"filter"`
}

// filterDTO is a saved filter with its JQL.
type filterDTO struct {
	ID  string `json:"id"`
	JQL string `json:"jql"`
}
