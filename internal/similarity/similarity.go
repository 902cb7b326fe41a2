package similarity

// #region imports
import (
	"fmt"
	"math"
	"time"

	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region weights

// Weights configures the factor blend of the similarity score.
// Each factor is independently bounded to [0,1]; weights should sum to 1
// so the combined score stays in [0,1].
type Weights struct {
	Text       float64
	Entity     float64
	Temporal   float64
	SourceType float64
	SourceName float64
}

// DefaultWeights returns the document-clustering weight profile.
func DefaultWeights() Weights {
	return Weights{
		Text:       0.4,
		Entity:     0.3,
		Temporal:   0.15,
		SourceType: 0.1,
		SourceName: 0.05,
	}
}

// #endregion weights

// #region score-cache

// ScoreCache is the narrow contract the engine needs for pairwise score reuse.
// Misses recompute; the engine never blocks on cache population.
type ScoreCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
}

// #endregion score-cache

// #region engine

// Engine computes the weighted multi-factor similarity between two documents.
type Engine struct {
	extractor *feature.Extractor
	weights   Weights
	cache     ScoreCache
	cacheTTL  time.Duration
}

// NewEngine creates an Engine. cache may be nil (every pair recomputed).
func NewEngine(extractor *feature.Extractor, weights Weights, cache ScoreCache, cacheTTL time.Duration) *Engine {
	return &Engine{
		extractor: extractor,
		weights:   weights,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// #endregion engine

// #region similarity

// Similarity returns the weighted similarity of a and b in [0,1].
// Symmetric; self-similarity (same content hash) short-circuits to 1.0.
func (e *Engine) Similarity(a, b model.Document) float64 {
	if a.ContentHash != "" && a.ContentHash == b.ContentHash {
		return 1.0
	}

	key := pairKey(a.ContentHash, b.ContentHash)
	if e.cache != nil && key != "" {
		if v, ok := e.cache.Get(key); ok {
			if score, ok := v.(float64); ok {
				return score
			}
		}
	}

	fa := e.extractor.Extract(a)
	fb := e.extractor.Extract(b)

	score := e.weights.Text*textSimilarity(fa, fb) +
		e.weights.Entity*entityJaccard(fa, fb) +
		e.weights.Temporal*temporalMatch(fa, fb) +
		e.weights.SourceType*binaryMatch(fa.SourceType, fb.SourceType) +
		e.weights.SourceName*binaryMatch(fa.SourceName, fb.SourceName)
	score = clamp01(score)

	if e.cache != nil && key != "" {
		e.cache.Set(key, score, e.cacheTTL)
	}
	return score
}

// pairKey builds an order-independent cache key so (a,b) and (b,a) share an entry.
func pairKey(ha, hb string) string {
	if ha == "" || hb == "" {
		return ""
	}
	if ha > hb {
		ha, hb = hb, ha
	}
	return fmt.Sprintf("similarity:%s:%s", ha, hb)
}

// #endregion similarity

// #region factors

// textSimilarity is the cosine of the two term-frequency vectors.
func textSimilarity(a, b *feature.Features) float64 {
	if len(a.TermFreq) == 0 || len(b.TermFreq) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, fa := range a.TermFreq {
		normA += fa * fa
		if fb, ok := b.TermFreq[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range b.TermFreq {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// entityJaccard is |A∩B| / |A∪B| over the combined entity sets.
func entityJaccard(a, b *feature.Features) float64 {
	setA := a.EntitySet()
	setB := b.EntitySet()
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for name := range setA {
		if setB[name] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// temporalMatch is binary: both documents fall in the same known month bucket.
func temporalMatch(a, b *feature.Features) float64 {
	if a.TemporalBucket == "unknown" || b.TemporalBucket == "unknown" {
		return 0
	}
	return binaryMatch(a.TemporalBucket, b.TemporalBucket)
}

func binaryMatch(a, b string) float64 {
	if a != "" && a == b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion factors
