package discovery

import (
	"context"

	"jobscout/pkg/models"
)

const sourceCurated = "curated"

// curatedVCFirms are London-based investors with in-house platform and investment teams
var curatedVCFirms = []models.Company{
	{Name: "Atomico", URL: "https://atomico.com", CareerPageURL: "https://atomico.com/careers", Industry: "Deep Tech VC", Location: "London"},
	{Name: "Balderton Capital", URL: "https://www.balderton.com", CareerPageURL: "https://www.balderton.com/careers", Industry: "Technology VC", Location: "London"},
	{Name: "Index Ventures", URL: "https://www.indexventures.com", CareerPageURL: "https://www.indexventures.com/careers", Industry: "Technology VC", Location: "London"},
	{Name: "Accel", URL: "https://www.accel.com", CareerPageURL: "https://www.accel.com/careers", Industry: "Technology VC", Location: "London"},
	{Name: "IQ Capital", URL: "https://iqcapital.vc", CareerPageURL: "https://iqcapital.vc/careers", Industry: "Deep Tech VC", Location: "London"},
}

var curatedCompanies = []models.Company{
	{Name: "Wayve", URL: "https://wayve.ai", CareerPageURL: "https://wayve.ai/careers", Industry: "Autonomous Vehicles", Location: "London", FundingStage: "Series C"},
	{Name: "Graphcore", URL: "https://www.graphcore.ai", CareerPageURL: "https://www.graphcore.ai/jobs", Industry: "AI Hardware", Location: "Bristol, UK", FundingStage: "Series E"},
	{Name: "Oxbotica", URL: "https://www.oxbotica.com", CareerPageURL: "https://www.oxbotica.com/careers", Industry: "Autonomous Vehicles", Location: "Oxford, UK", FundingStage: "Series C"},
	{Name: "FiveAI", URL: "https://five.ai", CareerPageURL: "https://five.ai/careers", Industry: "Autonomous Vehicles", Location: "London", FundingStage: "Series B"},
	{Name: "Arm", URL: "https://www.arm.com", CareerPageURL: "https://careers.arm.com", Industry: "Semiconductors", Location: "Cambridge, UK", FundingStage: "Public"},
	{Name: "Cerebras", URL: "https://www.cerebras.net", CareerPageURL: "https://www.cerebras.net/careers", Industry: "AI Hardware", Location: "Remote", FundingStage: "Series F"},
}

// CuratedSource returns a fixed list of deep-tech companies and, optionally, VC firms
type CuratedSource struct {
	IncludeVCFirms bool
}

// Name implements Source
func (CuratedSource) Name() string { return sourceCurated }

// ListCandidateCompanies implements Source. Criteria are not used to narrow the list.
func (s CuratedSource) ListCandidateCompanies(_ context.Context, _ models.Criteria) ([]models.Company, error) {
	out := make([]models.Company, 0, len(curatedCompanies)+len(curatedVCFirms))
	for _, c := range curatedCompanies {
		c.Type = models.CompanyTypeCompany
		c.Source = sourceCurated
		out = append(out, c)
	}
	if s.IncludeVCFirms {
		for _, c := range curatedVCFirms {
			c.Type = models.CompanyTypeVCFirm
			c.Source = sourceCurated
			out = append(out, c)
		}
	}
	return out, nil
}
