package jira

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/classify"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// jiraTimeFormat is the timestamp layout used by both Server and Cloud.
const jiraTimeFormat = "2006-01-02T15:04:05.000-0700"

// ParseTime parses a source timestamp, accepting the Jira layout first and
// RFC 3339 as fallback.
func ParseTime(value string) (time.Time, error) {
	if t, err := time.Parse(jiraTimeFormat, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// Mapper converts raw DTOs into domain entities. Custom field identifiers
// come from FieldConfig so deployments with different schemas only differ
// in configuration.
type Mapper struct {
	fields     FieldConfig
	classifier *classify.Classifier
}

func NewMapper(fields FieldConfig) *Mapper {
	return &Mapper{fields: fields, classifier: classify.New()}
}

// MapWorkItem transforms one issue DTO into a domain WorkItem, resolving
// the canonical status bucket on the way in so calculators never see raw
// labels without a classification.
func (m *Mapper) MapWorkItem(dto IssueDTO) domain.WorkItem {
	item := domain.WorkItem{Key: dto.Key}

	item.Summary = decodeString(dto.Fields["summary"])

	var issueType issueTypeDTO
	if decode(dto.Fields["issuetype"], &issueType) {
		item.Type = issueType.Name
	}

	var status statusDTO
	if decode(dto.Fields["status"], &status) {
		item.RawStatus = status.Name
		res := m.classifier.Classify(status.Name, status.StatusCategory.Key, status.StatusCategory.Name)
		item.Category = res.Category
		item.CategoryKey = res.CategoryKey
		item.InQA = res.InQA
	}

	if pts, ok := decodeFloat(dto.Fields[m.fields.StoryPoints]); ok {
		item.StoryPoints = &pts
	}
	if secs, ok := decodeInt(dto.Fields["timeoriginalestimate"]); ok {
		d := domain.NewDuration(secs)
		item.Estimate = &d
	}
	if secs, ok := decodeInt(dto.Fields["timespent"]); ok {
		d := domain.NewDuration(secs)
		item.Spent = &d
	}
	if secs, ok := decodeInt(dto.Fields["aggregatetimeoriginalestimate"]); ok {
		d := domain.NewDuration(secs)
		item.AggregateEst = &d
	}
	if secs, ok := decodeInt(dto.Fields["aggregatetimespent"]); ok {
		d := domain.NewDuration(secs)
		item.AggregateSpent = &d
	}

	var parent parentDTO
	if decode(dto.Fields["parent"], &parent) && parent.Key != "" {
		item.ParentKey = parent.Key
	} else if epic := decodeString(dto.Fields[m.fields.EpicLink]); epic != "" {
		item.ParentKey = epic
	}

	item.Team = m.decodeTeam(dto.Fields[m.fields.Team])

	if raw := decodeString(dto.Fields["resolutiondate"]); raw != "" {
		if t, err := ParseTime(raw); err == nil {
			item.ResolutionDate = &t
		}
	}
	if raw := decodeString(dto.Fields["updated"]); raw != "" {
		if t, err := ParseTime(raw); err == nil {
			item.Updated = t
		}
	}

	return item
}

// MapTimeEntry transforms a worklog DTO, attaching the owning item key.
// Denormalized item snapshot fields are filled by the caller when the
// owning item is at hand.
func (m *Mapper) MapTimeEntry(dto WorklogDTO, itemKey string) domain.TimeEntry {
	entry := domain.TimeEntry{
		ID:        dto.ID,
		ItemKey:   itemKey,
		TimeSpent: domain.NewDuration(dto.TimeSpentSeconds),
		Note:      dto.Comment,
	}
	entry.Author.ID = dto.Author.AccountID
	if entry.Author.ID == "" {
		entry.Author.ID = dto.Author.Name
	}
	entry.Author.DisplayName = dto.Author.DisplayName

	if t, err := ParseTime(dto.Started); err == nil {
		entry.Started = t
	}
	return entry
}

// MapSprint transforms a sprint DTO, defaulting the owning board to the
// queried board when the origin is absent.
func (m *Mapper) MapSprint(dto SprintDTO, boardID int64) domain.Sprint {
	s := domain.Sprint{
		ID:      dto.ID,
		Name:    dto.Name,
		State:   domain.SprintState(strings.ToLower(dto.State)),
		BoardID: dto.OriginBoardID,
	}
	if s.BoardID == 0 {
		s.BoardID = boardID
	}
	if t, err := ParseTime(dto.StartDate); err == nil {
		s.Start = &t
	}
	if t, err := ParseTime(dto.EndDate); err == nil {
		s.End = &t
	}
	if t, err := ParseTime(dto.CompleteDate); err == nil {
		s.Complete = &t
	}
	return s
}

// decodeTeam handles the two shapes the team field arrives in: a plain
// string or an option object with name/value/title.
func (m *Mapper) decodeTeam(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if s := decodeString(raw); s != "" {
		return s
	}
	var team teamDTO
	if decode(raw, &team) {
		for _, v := range []string{team.Name, team.Value, team.Title} {
			if v != "" {
				return v
			}
		}
	}
	return ""
}

func decode(raw json.RawMessage, out any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if decode(raw, &s) {
		return s
	}
	return ""
}

func decodeFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if decode(raw, &f) {
		return f, true
	}
	return 0, false
}

func decodeInt(raw json.RawMessage) (int64, bool) {
	var n int64
	if decode(raw, &n) {
		return n, true
	}
	return 0, false
}
