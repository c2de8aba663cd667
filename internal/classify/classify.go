// Package classify maps raw, locale-varying status labels onto the
// canonical status buckets used by the calculators.
package classify

import (
	"strings"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

// KeywordRule binds one lower-cased keyword to a bucket. Rules are
// evaluated in table order, so narrower keywords must precede broader
// ones (e.g. "testing" before "test").
type KeywordRule struct {
	Keyword  string
	Language string
	Category domain.StatusCategory
}

// Result is the outcome of classifying one status label.
type Result struct {
	Category    domain.StatusCategory
	CategoryKey string
	InQA        bool
}

// Classifier resolves labels with a fixed precedence: explicit category
// key, then explicit category name, then keyword match on the raw label,
// then Unknown. The QA flag is a secondary tag layered on top of the
// primary bucket.
type Classifier struct {
	rules      []KeywordRule
	qaKeywords []KeywordRule
}

// Normalized category keys and names the source may send alongside the
// raw label. Keys follow Jira's statusCategory taxonomy.
var categoryByKey = map[string]domain.StatusCategory{
	"new":           domain.CategoryToDo,
	"todo":          domain.CategoryToDo,
	"indeterminate": domain.CategoryInProgress,
	"inprogress":    domain.CategoryInProgress,
	"done":          domain.CategoryDone,
	"complete":      domain.CategoryDone,
}

var categoryByName = map[string]domain.StatusCategory{
	"to do":       domain.CategoryToDo,
	"à faire":     domain.CategoryToDo,
	"in progress": domain.CategoryInProgress,
	"en cours":    domain.CategoryInProgress,
	"done":        domain.CategoryDone,
	"terminé":     domain.CategoryDone,
}

// DefaultKeywordTable is the built-in label keyword table. Order is
// load-bearing: Done keywords are checked before InProgress before ToDo,
// and within a bucket French synonyms sit next to their English pairs.
func DefaultKeywordTable() []KeywordRule {
	return []KeywordRule{
		{"done", "en", domain.CategoryDone},
		{"closed", "en", domain.CategoryDone},
		{"resolved", "en", domain.CategoryDone},
		{"fini", "fr", domain.CategoryDone},
		{"terminé", "fr", domain.CategoryDone},
		{"termine", "fr", domain.CategoryDone},
		{"livré", "fr", domain.CategoryDone},
		{"livre", "fr", domain.CategoryDone},
		{"in progress", "en", domain.CategoryInProgress},
		{"progress", "en", domain.CategoryInProgress},
		{"doing", "en", domain.CategoryInProgress},
		{"development", "en", domain.CategoryInProgress},
		{"review", "en", domain.CategoryInProgress},
		{"en cours", "fr", domain.CategoryInProgress},
		{"développement", "fr", domain.CategoryInProgress},
		{"developpement", "fr", domain.CategoryInProgress},
		{"to do", "en", domain.CategoryToDo},
		{"todo", "en", domain.CategoryToDo},
		{"open", "en", domain.CategoryToDo},
		{"backlog", "en", domain.CategoryToDo},
		{"à faire", "fr", domain.CategoryToDo},
		{"a faire", "fr", domain.CategoryToDo},
		{"ouvert", "fr", domain.CategoryToDo},
	}
}

// DefaultQAKeywords flags labels describing a verification phase.
func DefaultQAKeywords() []KeywordRule {
	return []KeywordRule{
		{"qa", "en", domain.CategoryQA},
		{"testing", "en", domain.CategoryQA},
		{"test", "en", domain.CategoryQA},
		{"validation", "fr", domain.CategoryQA},
		{"recette", "fr", domain.CategoryQA},
		{"vérification", "fr", domain.CategoryQA},
		{"verification", "fr", domain.CategoryQA},
	}
}

// New builds a classifier with the built-in keyword tables.
func New() *Classifier {
	return NewWithTables(DefaultKeywordTable(), DefaultQAKeywords())
}

// NewWithTables builds a classifier with caller-supplied tables, used by
// deployments whose workflows carry custom status vocabularies.
func NewWithTables(rules, qaKeywords []KeywordRule) *Classifier {
	return &Classifier{rules: rules, qaKeywords: qaKeywords}
}

// Classify resolves a raw label plus optional normalized category key and
// name into a canonical bucket. The first recognized signal wins.
func (c *Classifier) Classify(label, categoryKey, categoryName string) Result {
	res := Result{Category: domain.CategoryUnknown}

	if cat, ok := categoryByKey[normalize(categoryKey)]; ok {
		res.Category = cat
		res.CategoryKey = normalize(categoryKey)
	} else if cat, ok := categoryByName[normalize(categoryName)]; ok {
		res.Category = cat
		res.CategoryKey = keyFor(cat)
	} else if cat, ok := c.matchLabel(label); ok {
		res.Category = cat
		res.CategoryKey = keyFor(cat)
	}

	res.InQA = c.IsQALabel(label)
	return res
}

// IsQALabel reports whether the label carries a verification keyword,
// independent of its primary bucket.
func (c *Classifier) IsQALabel(label string) bool {
	lowered := normalize(label)
	for _, r := range c.qaKeywords {
		if strings.Contains(lowered, r.Keyword) {
			return true
		}
	}
	return false
}

func (c *Classifier) matchLabel(label string) (domain.StatusCategory, bool) {
	lowered := normalize(label)
	if lowered == "" {
		return domain.CategoryUnknown, false
	}
	for _, r := range c.rules {
		if strings.Contains(lowered, r.Keyword) {
			return r.Category, true
		}
	}
	return domain.CategoryUnknown, false
}

func keyFor(cat domain.StatusCategory) string {
	switch cat {
	case domain.CategoryToDo:
		return "new"
	case domain.CategoryInProgress:
		return "indeterminate"
	case domain.CategoryDone:
		return "done"
	default:
		return ""
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
