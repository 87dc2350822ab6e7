package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Category describes one red-flag keyword group. A clause "hits" the category
// when any trigger phrase appears as a substring of its lowercased text.
type Category struct {
	Key         string   `json:"key"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// Matcher scans clause text against an ordered catalog of risk categories.
type Matcher struct {
	catalog []Category
}

// DefaultCatalog returns the built-in red-flag catalog. Order is significant:
// findings are always reported in catalog order.
func DefaultCatalog() []Category {
	return []Category{
		{
			Key:         "auto_renewal",
			Keywords:    []string{"auto-renew", "automatically renew", "automatic renewal", "evergreen"},
			Description: "Automatic renewal clause - may lock you into ongoing commitments",
		},
		{
			Key:         "exclusivity",
			Keywords:    []string{"exclusive", "solely", "only work with", "exclusively"},
			Description: "Exclusivity clause - may limit your business opportunities",
		},
		{
			Key:         "unlimited_liability",
			Keywords:    []string{"unlimited liability", "no limit to liability", "fully liable"},
			Description: "Unlimited liability - you could be responsible for significant damages",
		},
		{
			Key:         "indemnification",
			Keywords:    []string{"indemnify", "hold harmless", "defend and hold"},
			Description: "Indemnification clause - you may be required to cover legal costs and damages",
		},
		{
			Key:         "broad_termination",
			Keywords:    []string{"terminate at will", "terminate without cause", "immediate termination"},
			Description: "Broad termination rights - the other party can end the agreement easily",
		},
		{
			Key:         "ip_assignment",
			Keywords:    []string{"assign all rights", "transfer ownership", "work for hire"},
			Description: "Intellectual property assignment - you may lose rights to your work",
		},
		{
			Key:         "penalty_clauses",
			Keywords:    []string{"penalty", "liquidated damages", "substantial damages"},
			Description: "Penalty clause - you may face financial penalties for breach",
		},
		{
			Key:         "governing_law",
			Keywords:    []string{"governed by laws of", "jurisdiction of", "courts of"},
			Description: "Jurisdiction clause - legal disputes may need to be resolved in unfavorable location",
		},
		{
			Key:         "modification_restrictions",
			Keywords:    []string{"cannot be modified", "no modifications", "written consent required"},
			Description: "Modification restrictions - agreement may be difficult to change later",
		},
		{
			Key:         "confidentiality_overreach",
			Keywords:    []string{"perpetual confidentiality", "permanent non-disclosure", "indefinite confidentiality"},
			Description: "Excessive confidentiality terms - may restrict your business activities indefinitely",
		},
	}
}

// NewMatcher constructs a matcher from the JSON catalog at path. An empty path
// selects the built-in catalog.
func NewMatcher(path string) (*Matcher, error) {
	if strings.TrimSpace(path) == "" {
		return &Matcher{catalog: DefaultCatalog()}, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read risk catalog: %w", err)
	}
	var catalog []Category
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal risk catalog: %w", err)
	}
	cleaned := make([]Category, 0, len(catalog))
	for _, cat := range catalog {
		var keywords []string
		for _, kw := range cat.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if strings.TrimSpace(cat.Key) == "" || len(keywords) == 0 || strings.TrimSpace(cat.Description) == "" {
			continue
		}
		cat.Keywords = keywords
		cleaned = append(cleaned, cat)
	}
	return &Matcher{catalog: cleaned}, nil
}

// Describe returns the semicolon-joined descriptions of every hit category in
// catalog order, or the empty string when nothing matches. Pure function.
func (m *Matcher) Describe(clauseText string) string {
	return strings.Join(m.descriptions(clauseText), "; ")
}

// Findings returns the hit categories themselves, in catalog order.
func (m *Matcher) Findings(clauseText string) []Category {
	if m == nil {
		return nil
	}
	lower := strings.ToLower(clauseText)
	var hits []Category
	for _, cat := range m.catalog {
		for _, keyword := range cat.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				hits = append(hits, cat)
				break
			}
		}
	}
	return hits
}

func (m *Matcher) descriptions(clauseText string) []string {
	findings := m.Findings(clauseText)
	if len(findings) == 0 {
		return nil
	}
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Description)
	}
	return out
}

// Catalog exposes the loaded categories (primarily for testing).
func (m *Matcher) Catalog() []Category {
	return m.catalog
}

// Validate ensures the matcher has at least baseline configuration.
func (m *Matcher) Validate() error {
	if m == nil {
		return errors.New("risk matcher is nil")
	}
	if len(m.catalog) == 0 {
		return errors.New("risk catalog is empty")
	}
	return nil
}
