package cluster

// #region imports
import (
	"sort"
	"time"

	"github.com/ebrodeur/recoupement/internal/feature"
)

// #endregion imports

// #region theme-keywords

var cyberKeywords = []string{
	"cyber", "malware", "ransomware", "phishing", "botnet", "exploit",
	"intrusion", "server", "network", "credentials", "exfiltration",
	"backdoor", "vulnerability",
}

var terrorismKeywords = []string{
	"attack", "explosive", "bomb", "cell", "radical", "terrorist",
	"armed", "group", "militant", "recruitment", "weapons",
}

var militaryKeywords = []string{
	"troops", "convoy", "military", "missile", "artillery", "deployment",
	"battalion", "border", "airspace", "drone",
}

var politicalKeywords = []string{
	"election", "minister", "government", "protest", "coup", "parliament",
	"sanctions", "diplomatic",
}

var economicKeywords = []string{
	"smuggling", "trafficking", "laundering", "financing", "shipment",
	"cargo", "funds", "payments",
}

var themeKeywords = map[string][]string{
	"cyber":     cyberKeywords,
	"terrorism": terrorismKeywords,
	"military":  militaryKeywords,
	"political": politicalKeywords,
	"economic":  economicKeywords,
}

// #endregion theme-keywords

// #region types

// EntityCount pairs an entity name with its occurrence count in a cluster.
type EntityCount struct {
	Name  string
	Count int
}

// Analysis is the derived read-only view of one cluster: theme, temporal
// concentration, dominant entities, and risk. Never persisted on its own.
type Analysis struct {
	ClusterID        string
	Size             int
	Theme            string
	ThemeConfidence  float64
	TopKeywords      []string
	TemporalPattern  string // "concentrated" | "distributed"
	TopPersons       []EntityCount
	TopOrganizations []EntityCount
	TopLocations     []EntityCount
	RiskScore        float64
	RiskLevel        string // "low" | "medium" | "high"
}

// AnalysisCache is the narrow caching contract the analyzer needs.
type AnalysisCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
}

// #endregion types

// #region analyzer

const topEntityCount = 5
const topKeywordCount = 5

// Analyzer derives per-cluster themes, temporal concentration, dominant
// entities, and a risk score.
type Analyzer struct {
	extractor *feature.Extractor
	cache     AnalysisCache
	cacheTTL  time.Duration
}

// NewAnalyzer creates an Analyzer. cache may be nil.
func NewAnalyzer(extractor *feature.Extractor, cache AnalysisCache, cacheTTL time.Duration) *Analyzer {
	return &Analyzer{extractor: extractor, cache: cache, cacheTTL: cacheTTL}
}

// Analyze computes the analysis for a cluster. threatScores maps member
// content hashes to their current threat scores and feeds the risk formula.
func (a *Analyzer) Analyze(c Cluster, threatScores map[string]float64) Analysis {
	key := "clustering:analysis:" + c.ID
	if a.cache != nil {
		if v, ok := a.cache.Get(key); ok {
			if an, ok := v.(Analysis); ok && an.Size == len(c.Documents) {
				return an
			}
		}
	}

	feats := make([]*feature.Features, len(c.Documents))
	for i, doc := range c.Documents {
		feats[i] = a.extractor.Extract(doc)
	}

	theme, confidence, keywords := themeVote(feats)

	an := Analysis{
		ClusterID:        c.ID,
		Size:             len(c.Documents),
		Theme:            theme,
		ThemeConfidence:  confidence,
		TopKeywords:      keywords,
		TemporalPattern:  temporalPattern(feats),
		TopPersons:       topEntities(feats, func(f *feature.Features) []string { return f.Persons }),
		TopOrganizations: topEntities(feats, func(f *feature.Features) []string { return f.Organizations }),
		TopLocations:     topEntities(feats, func(f *feature.Features) []string { return f.Locations }),
	}
	an.RiskScore = riskScore(len(c.Documents), threatScores, c)
	an.RiskLevel = riskLevel(an.RiskScore)

	if a.cache != nil {
		a.cache.Set(key, an, a.cacheTTL)
	}
	return an
}

// #endregion analyzer

// #region theme

// themeVote runs a term-frequency weighted vote of member texts against the
// theme keyword tables. Confidence is the mean weight of the top-k keywords.
func themeVote(feats []*feature.Features) (string, float64, []string) {
	// Aggregate term weights across members.
	agg := make(map[string]float64)
	for _, f := range feats {
		for term, w := range f.TermFreq {
			agg[term] += w
		}
	}
	if len(agg) == 0 {
		return "unknown", 0, nil
	}

	// Top-k keywords by aggregated weight, name as tiebreak for determinism.
	type kw struct {
		term   string
		weight float64
	}
	ranked := make([]kw, 0, len(agg))
	for term, w := range agg {
		ranked = append(ranked, kw{term, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term
	})
	if len(ranked) > topKeywordCount {
		ranked = ranked[:topKeywordCount]
	}

	keywords := make([]string, len(ranked))
	var weightSum, maxWeight float64
	for i, k := range ranked {
		keywords[i] = k.term
		weightSum += k.weight
		if k.weight > maxWeight {
			maxWeight = k.weight
		}
	}

	// Vote themes by aggregated weight of their keywords.
	var bestTheme string
	var bestVote float64
	themes := make([]string, 0, len(themeKeywords))
	for theme := range themeKeywords {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	for _, theme := range themes {
		var vote float64
		for _, term := range themeKeywords[theme] {
			vote += agg[term]
		}
		if vote > bestVote {
			bestVote = vote
			bestTheme = theme
		}
	}
	if bestTheme == "" {
		bestTheme = "unknown"
	}

	// Confidence: mean normalized weight of the top-k keywords.
	confidence := 0.0
	if maxWeight > 0 && len(ranked) > 0 {
		confidence = weightSum / float64(len(ranked)) / maxWeight
	}
	return bestTheme, confidence, keywords
}

// #endregion theme

// #region temporal

// temporalPattern is "concentrated" when members span at most two distinct
// known time buckets, "distributed" otherwise.
func temporalPattern(feats []*feature.Features) string {
	buckets := make(map[string]bool)
	for _, f := range feats {
		if f.TemporalBucket != "unknown" {
			buckets[f.TemporalBucket] = true
		}
	}
	if len(buckets) <= 2 {
		return "concentrated"
	}
	return "distributed"
}

// #endregion temporal

// #region entities

// topEntities counts entity occurrences across members and returns the top 5,
// ties broken by name for determinism.
func topEntities(feats []*feature.Features, pick func(*feature.Features) []string) []EntityCount {
	counts := make(map[string]int)
	for _, f := range feats {
		for _, name := range pick(f) {
			counts[name]++
		}
	}
	ranked := make([]EntityCount, 0, len(counts))
	for name, c := range counts {
		ranked = append(ranked, EntityCount{Name: name, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topEntityCount {
		ranked = ranked[:topEntityCount]
	}
	return ranked
}

// #endregion entities

// #region risk

// riskScore = 0.6×avg member threat score + 0.4×min(size/10, 1).
// Members without a mapped threat do not dilute the average.
func riskScore(size int, threatScores map[string]float64, c Cluster) float64 {
	var sum float64
	scored := 0
	for _, doc := range c.Documents {
		if s, ok := threatScores[doc.ContentHash]; ok {
			sum += s
			scored++
		}
	}
	avgThreat := 0.0
	if scored > 0 {
		avgThreat = sum / float64(scored)
	}

	sizeFactor := float64(size) / 10.0
	if sizeFactor > 1 {
		sizeFactor = 1
	}
	return 0.6*avgThreat + 0.4*sizeFactor
}

func riskLevel(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

// #endregion risk
