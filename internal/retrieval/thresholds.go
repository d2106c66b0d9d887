package retrieval

import (
	"math"
	"sync"

	"aether/internal/symbol"
)

const (
	minThreshold     = 0.3
	maxThreshold     = 0.95
	defaultThreshold = 0.6
)

type thresholdKey struct {
	language, provider, model string
}

// thresholdCache holds one calibrated similarity threshold per
// (language, provider, model). Switching provider or model invalidates the
// thresholds keyed to the old pair implicitly, since a new key is simply
// never populated until calibrated — no explicit eviction is needed.
type thresholdCache struct {
	mu     sync.RWMutex
	values map[thresholdKey]float64
}

func newThresholdCache() *thresholdCache {
	return &thresholdCache{values: make(map[thresholdKey]float64)}
}

func (c *thresholdCache) get(language, provider, model string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[thresholdKey{language, provider, model}]
	return v, ok
}

func (c *thresholdCache) set(language, provider, model string, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[thresholdKey{language, provider, model}] = v
}

// thresholdFor returns the calibrated similarity threshold for
// (language, provider, model), falling back through the configured
// per-language override, then the configured default, calibrating lazily
// the first time a language/provider/model triple is seen.
func (e *Engine) thresholdFor(language, provider, model string) float64 {
	if v, ok := e.thresholds.get(language, provider, model); ok {
		return v
	}

	v, err := e.calibrateThreshold(language, provider, model)
	if err != nil || v == 0 {
		v = e.configuredThreshold(language)
	}
	e.thresholds.set(language, provider, model, v)
	return v
}

func (e *Engine) configuredThreshold(language string) float64 {
	if e.cfg == nil {
		return defaultThreshold
	}
	if v, ok := e.cfg.Search.Thresholds.PerLanguage[language]; ok {
		return clampThreshold(v)
	}
	if e.cfg.Search.Thresholds.Default > 0 {
		return clampThreshold(e.cfg.Search.Thresholds.Default)
	}
	return defaultThreshold
}

func clampThreshold(v float64) float64 {
	return math.Max(minThreshold, math.Min(maxThreshold, v))
}

// calibrateThreshold samples intra-file and inter-file symbol-embedding
// pairs for language, computes cosine similarity distributions for each
// group, and picks a threshold at their midpoint — a point separating
// "same file, very likely the same concept" pairs from "different file,
// coincidentally similar" pairs.
func (e *Engine) calibrateThreshold(language, provider, model string) (float64, error) {
	if e.relStore == nil || e.vectorStore == nil {
		return 0, nil
	}

	ids, err := e.relStore.SymbolIDsForLanguage(language)
	if err != nil || len(ids) < 2 {
		return 0, err
	}

	byID := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		byID[id.String()] = struct{}{}
	}

	records, err := e.vectorStore.AllRecords(provider, model)
	if err != nil {
		return 0, err
	}

	type sample struct {
		id     string
		vector []float32
		file   string
	}
	var samples []sample
	for _, rec := range records {
		if _, ok := byID[rec.ID]; !ok {
			continue
		}
		id, err := symbol.ParseSymbolID(rec.ID)
		if err != nil {
			continue
		}
		sym, err := e.relStore.GetSymbol(id)
		if err != nil || sym == nil {
			continue
		}
		samples = append(samples, sample{id: rec.ID, vector: rec.Vector, file: sym.FilePath})
	}
	if len(samples) < 2 {
		return 0, nil
	}

	var intraSum, interSum float64
	var intraCount, interCount int
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			sim := cosineSimilarity(samples[i].vector, samples[j].vector)
			if samples[i].file == samples[j].file {
				intraSum += sim
				intraCount++
			} else {
				interSum += sim
				interCount++
			}
		}
	}

	if intraCount == 0 || interCount == 0 {
		return 0, nil
	}
	intraMean := intraSum / float64(intraCount)
	interMean := interSum / float64(interCount)
	return clampThreshold((intraMean + interMean) / 2), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
