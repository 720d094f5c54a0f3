package models

import "time"

// Digest is what a run hands to notifiers: the jobs it stored for the first time
type Digest struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Jobs       []Job     `json:"jobs"`
	Report     string    `json:"report"`
}

// CountByRecommendation tallies the digest's jobs per tier
func (d Digest) CountByRecommendation() map[Recommendation]int {
	counts := make(map[Recommendation]int)
	for _, j := range d.Jobs {
		counts[j.Recommendation]++
	}
	return counts
}
