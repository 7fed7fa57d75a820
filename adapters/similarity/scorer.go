package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"steward/domain/grievance"
	"steward/domain/prediction"
	"steward/internal/cache"
)

// Sub-score weights. They sum to 1.0 and are deliberately NOT renormalized
// when fields are absent: a case with no description and no outcome data
// cannot reach 100, which keeps sparse records from looking like strong
// precedent.
const (
	weightCaseType         = 0.25
	weightViolationType    = 0.20
	weightContractArticles = 0.15
	weightJustCauseTests   = 0.12
	weightProceduralIssues = 0.10
	weightDescription      = 0.10
	weightOutcome          = 0.08
)

// Scorer computes weighted multi-attribute similarity between feature
// records and ranks historical cases against a query. Ranking results are
// memoized in an optional TTL cache keyed by a feature fingerprint.
type Scorer struct {
	rankCache *cache.Cache[[]prediction.RankedCase]
	cacheTTL  time.Duration
}

// NewScorer creates a scorer without memoization.
func NewScorer() *Scorer {
	return &Scorer{}
}

// NewCachedScorer creates a scorer that memoizes ranking results.
func NewCachedScorer(rankCache *cache.Cache[[]prediction.RankedCase], ttl time.Duration) *Scorer {
	return &Scorer{rankCache: rankCache, cacheTTL: ttl}
}

// Score returns the weighted similarity between two feature records, in
// [0, 100]. Nil inputs score 0 rather than erroring.
func (s *Scorer) Score(a, b *grievance.FeatureRecord) float64 {
	if a == nil || b == nil {
		return 0
	}

	score := 0.0

	if a.CaseType == b.CaseType {
		score += weightCaseType * 100
	}
	if a.ViolationType == b.ViolationType {
		score += weightViolationType * 100
	}

	score += weightContractArticles * setOverlap(a.ContractArticles, b.ContractArticles) * 100
	score += weightJustCauseTests * intSetOverlap(a.JustCauseTests, b.JustCauseTests) * 100
	score += weightProceduralIssues * setOverlap(a.ProceduralIssues, b.ProceduralIssues) * 100

	if a.Description != "" && b.Description != "" {
		score += weightDescription * TextSimilarity(a.Description, b.Description) * 100
	}
	if a.Outcome != "" && b.Outcome != "" && a.Outcome == b.Outcome {
		score += weightOutcome * 100
	}

	return clamp(score, 0, 100)
}

// RankSimilarCases scores query against every case in the corpus and
// returns at most limit cases with similarity >= minScore, best first.
func (s *Scorer) RankSimilarCases(query *grievance.FeatureRecord, corpus []grievance.HistoricalCase, limit int, minScore float64) []prediction.RankedCase {
	if query == nil || len(corpus) == 0 {
		return nil
	}

	key := ""
	if s.rankCache != nil {
		key = fmt.Sprintf("%s|%d|%d|%.1f", Fingerprint(query), len(corpus), limit, minScore)
		if ranked, ok := s.rankCache.Get(key); ok {
			return ranked
		}
	}

	ranked := s.rank(query, nil, "", corpus, limit, minScore)

	if s.rankCache != nil {
		s.rankCache.Set(key, ranked, s.cacheTTL)
	}
	return ranked
}

// RankSimilarCasesHybrid ranks like RankSimilarCases but blends embedding
// similarity into the score of every candidate whose stored vector came
// from the same provider as the query's. Vectors from other providers live
// in a different space, so those candidates keep their feature score.
// Hybrid results are not memoized: the cache key would have to carry the
// query vector, and the embedding call dominates the cost anyway.
func (s *Scorer) RankSimilarCasesHybrid(query *grievance.FeatureRecord, queryVec []float64, provider string, corpus []grievance.HistoricalCase, limit int, minScore float64) []prediction.RankedCase {
	if query == nil || len(corpus) == 0 {
		return nil
	}
	return s.rank(query, queryVec, provider, corpus, limit, minScore)
}

// Feature and vector scores blend equally when both are available.
const (
	featureBlendWeight = 0.5
	vectorBlendWeight  = 0.5
)

func (s *Scorer) rank(query *grievance.FeatureRecord, queryVec []float64, provider string, corpus []grievance.HistoricalCase, limit int, minScore float64) []prediction.RankedCase {
	ranked := make([]prediction.RankedCase, 0, len(corpus))
	for _, c := range corpus {
		features := c.Features
		if features.Outcome == "" {
			features.Outcome = c.Outcome
		}
		sim := s.Score(query, &features)
		if len(queryVec) > 0 && len(c.Embedding) > 0 && c.Provider == provider {
			vec := clamp(SafeCosine(queryVec, c.Embedding), 0, 1) * 100
			sim = featureBlendWeight*sim + vectorBlendWeight*vec
		}
		if sim >= minScore {
			ranked = append(ranked, prediction.RankedCase{Case: c, Similarity: sim})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// CacheStats reports the memoization cache's state. Zero-valued when the
// scorer runs uncached.
func (s *Scorer) CacheStats() cache.Stats {
	if s.rankCache == nil {
		return cache.Stats{}
	}
	return s.rankCache.Stats()
}

// Fingerprint derives a stable cache key from a feature record's content.
func Fingerprint(f *grievance.FeatureRecord) string {
	articles := append([]string(nil), f.ContractArticles...)
	sort.Strings(articles)
	issues := append([]string(nil), f.ProceduralIssues...)
	sort.Strings(issues)
	tests := append([]int(nil), f.JustCauseTests...)
	sort.Ints(tests)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%v|%s|%s",
		f.CaseType, f.ViolationType,
		strings.Join(articles, ","), strings.Join(issues, ","),
		tests, f.EvidenceStrength, f.Description)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// setOverlap returns |intersection| / max(|a|, |b|, 1).
func setOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	overlap := 0
	for _, v := range a {
		if _, ok := set[v]; ok {
			overlap++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(overlap) / float64(denom)
}

func intSetOverlap(a, b []int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[int]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	overlap := 0
	for _, v := range a {
		if _, ok := set[v]; ok {
			overlap++
		}
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return float64(overlap) / float64(denom)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
