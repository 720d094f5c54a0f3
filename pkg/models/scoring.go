package models

// ScoreResult is the verdict of a relevance scorer for one listing. ScoredBy
// names the strategy that produced the value; Fallback is set when the primary
// strategy failed for this listing.
type ScoreResult struct {
	Value          int            `json:"score" validate:"gte=0,lte=100"`
	RoleType       RoleType       `json:"role_type" validate:"omitempty,oneof=pm vc other"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Pros           []string       `json:"pros,omitempty"`
	Cons           []string       `json:"cons,omitempty"`
	Strategy       string         `json:"strategy"`
	ScoredBy       string         `json:"scored_by,omitempty"`
	Fallback       bool           `json:"-"`
}

// Criteria describes what a relevant opening looks like
type Criteria struct {
	PMTerms          []string `yaml:"pm_terms" env:"PM_TERMS" envSeparator:","`
	VCTerms          []string `yaml:"vc_terms" env:"VC_TERMS" envSeparator:","`
	Industries       []string `yaml:"industries" env:"INDUSTRIES" envSeparator:","`
	TechnicalSignals []string `yaml:"technical_signals" env:"TECHNICAL_SIGNALS" envSeparator:","`
	Locations        []string `yaml:"locations" env:"LOCATIONS" envSeparator:","`
	Stages           []string `yaml:"stages" env:"STAGES" envSeparator:","`
	ExcludeKeywords  []string `yaml:"exclude_keywords" env:"EXCLUDE_KEYWORDS" envSeparator:","`
}

// DefaultCriteria returns the deep tech product and venture profile
func DefaultCriteria() Criteria {
	return Criteria{
		PMTerms: []string{
			"product manager", "product lead", "head of product", "product owner",
			"technical product manager", "project manager", "program manager", "tpm",
		},
		VCTerms: []string{
			"venture", "vc", "investment analyst", "investment associate",
			"principal investor", "venture partner",
		},
		Industries: []string{
			"robotics", "autonomous", "ai hardware", "chip", "semiconductor", "soc",
			"vlsi", "deep tech", "hardware", "edge ai",
		},
		TechnicalSignals: []string{
			"hardware", "chip", "silicon", "vlsi", "soc", "risc-v", "fpga",
			"technical diligence", "technical background", "engineering degree",
		},
		Locations:       []string{"london", "remote", "uk", "united kingdom", "cambridge", "oxford"},
		Stages:          []string{"seed", "series a", "series b", "series c", "growth"},
		ExcludeKeywords: []string{"intern", "internship", "graduate", "junior"},
	}
}
