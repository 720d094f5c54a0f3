package models

import "time"

// CompanyType distinguishes operating companies from investors
type CompanyType string

const (
	CompanyTypeCompany CompanyType = "company"
	CompanyTypeVCFirm  CompanyType = "vc_firm"
)

// Company is a discovered employer whose career page is scraped for openings
type Company struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name" validate:"required"`
	URL           string      `json:"url" validate:"required,url"`
	CareerPageURL string      `json:"career_page_url,omitempty" validate:"omitempty,url"`
	Type          CompanyType `json:"company_type" validate:"omitempty,oneof=company vc_firm"`
	Industry      string      `json:"industry,omitempty"`
	Location      string      `json:"location,omitempty"`
	FundingStage  string      `json:"funding_stage,omitempty"`
	Source        string      `json:"source,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	DiscoveredAt  time.Time   `json:"discovered_at"`
	LastScrapedAt *time.Time  `json:"last_scraped_at,omitempty"`
}

// Identifier returns a human readable reference used in run summaries
func (c *Company) Identifier() string {
	if c.Name != "" {
		return c.Name
	}
	return c.URL
}
