package scoring

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"jobscout/pkg/models"
)

// Component ceilings of the rule strategy
const (
	RoleWeight     = 40
	IndustryWeight = 25
	TechWeight     = 20
	LocationWeight = 10
	StageWeight    = 5
)

// RuleScorer is the deterministic keyword strategy. It never fails.
type RuleScorer struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewRuleScorer creates a rule scorer
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{patterns: make(map[string]*regexp.Regexp)}
}

// Score sums the five weighted components; each is zero when unmatched
func (r *RuleScorer) Score(_ context.Context, listing models.RawListing, company models.Company, criteria models.Criteria) (models.ScoreResult, error) {
	title := fold(listing.Title)
	desc := fold(listing.Description)
	body := title + " " + desc

	var pros, cons []string
	score := 0

	// Role: a title match carries full weight, a description-only match half
	roleType := models.RoleTypeOther
	rolePoints := 0
	switch {
	case r.any(title, criteria.PMTerms):
		roleType, rolePoints = models.RoleTypePM, RoleWeight
	case r.any(title, criteria.VCTerms):
		roleType, rolePoints = models.RoleTypeVC, RoleWeight
	case r.any(desc, criteria.PMTerms):
		roleType, rolePoints = models.RoleTypePM, RoleWeight/2
	case r.any(desc, criteria.VCTerms):
		roleType, rolePoints = models.RoleTypeVC, RoleWeight/2
	}
	if excluded := r.matches(title, criteria.ExcludeKeywords); len(excluded) > 0 {
		rolePoints = 0
		cons = append(cons, "Excluded keyword in title: "+excluded[0])
	}
	switch {
	case rolePoints == RoleWeight:
		pros = append(pros, fmt.Sprintf("%s role matches target", strings.ToUpper(string(roleType))))
	case rolePoints > 0:
		pros = append(pros, fmt.Sprintf("Description mentions %s responsibilities", strings.ToUpper(string(roleType))))
	case roleType == models.RoleTypeOther:
		cons = append(cons, "Role type doesn't match PM or VC targets")
	}
	score += rolePoints

	// Industry: 10 points per distinct term, company industry included
	industries := r.matches(body+" "+fold(company.Industry), criteria.Industries)
	if len(industries) > 0 {
		score += min(IndustryWeight, len(industries)*10)
		pros = append(pros, "Relevant industry: "+strings.Join(industries[:min(2, len(industries))], ", "))
	} else {
		cons = append(cons, "Industry may not be deep tech focused")
	}

	// Technical background: one signal 15, two or more 20
	signals := r.matches(body, criteria.TechnicalSignals)
	switch {
	case len(signals) >= 2:
		score += TechWeight
	case len(signals) == 1:
		score += TechWeight - 5
	}
	if len(signals) > 0 {
		pros = append(pros, "Values technical/hardware background")
	}

	// Location
	place := fold(listing.Location) + " " + title
	if r.any(place, criteria.Locations) {
		score += LocationWeight
		pros = append(pros, "Good location: "+listing.Location)
	} else if listing.Location != "" {
		cons = append(cons, "Location outside preferences: "+listing.Location)
	}

	// Company stage
	if r.any(fold(company.FundingStage), criteria.Stages) {
		score += StageWeight
		pros = append(pros, "Preferred company stage: "+company.FundingStage)
	}

	score = min(100, max(0, score))

	reasoning := fmt.Sprintf("Scored %d/100. ", score)
	if len(pros) > 0 {
		reasoning += pros[0]
	} else {
		reasoning += "Limited match to criteria"
	}

	return models.ScoreResult{
		Value:          score,
		RoleType:       roleType,
		Recommendation: Recommend(score),
		Reasoning:      reasoning,
		Pros:           pros,
		Cons:           cons,
		ScoredBy:       "rules",
	}, nil
}

func (r *RuleScorer) any(text string, terms []string) bool {
	for _, term := range terms {
		if strings.TrimSpace(term) != "" && r.pattern(term).MatchString(text) {
			return true
		}
	}
	return false
}

// matches returns the distinct terms found in text, in criteria order
func (r *RuleScorer) matches(text string, terms []string) []string {
	var out []string
	for _, term := range terms {
		if strings.TrimSpace(term) != "" && r.pattern(term).MatchString(text) {
			out = append(out, term)
		}
	}
	return out
}

// pattern matches a term on word boundaries, allowing a plural suffix
func (r *RuleScorer) pattern(term string) *regexp.Regexp {
	term = fold(strings.TrimSpace(term))

	r.mu.Lock()
	defer r.mu.Unlock()

	if re, ok := r.patterns[term]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `(?:s|es)?\b`)
	r.patterns[term] = re
	return re
}

// fold lower-cases and strips diacritics so "Zürich" matches "zurich"
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}
