package retrieval

import (
	"math"
	"time"
)

const recencyWindow = 30 * 24 * time.Hour

// boostedScore applies the recency/access boost formula to raw, given the
// entity's current access count and last-access time (nil if never
// accessed).
func boostedScore(raw float64, accessCount int, lastAccessedAt *time.Time, now time.Time) float64 {
	recencyFactor := 0.0
	if lastAccessedAt != nil {
		age := now.Sub(*lastAccessedAt)
		recencyFactor = math.Max(0, 1-float64(age)/float64(recencyWindow))
	}
	accessFactor := math.Log(float64(accessCount)+1) / math.Log(100)
	return raw * (1 + 0.1*recencyFactor + 0.05*accessFactor)
}
