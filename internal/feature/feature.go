package feature

// #region imports
import (
	"sync"

	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region types

// Features is the extracted representation of one document. Pure derivation
// of the document's content; safe to cache per content hash.
type Features struct {
	ContentHash    string
	NormalizedText string
	Tokens         []string
	TermFreq       map[string]float64 // term → relative frequency
	Persons        []string
	Organizations  []string
	Locations      []string
	TemporalBucket string // "YYYY-MM" or "unknown"
	SourceType     string
	SourceName     string
}

// EntitySet returns all entity names across buckets, lowercased, deduplicated.
func (f *Features) EntitySet() map[string]bool {
	set := make(map[string]bool, len(f.Persons)+len(f.Organizations)+len(f.Locations))
	for _, group := range [][]string{f.Persons, f.Organizations, f.Locations} {
		for _, name := range group {
			set[name] = true
		}
	}
	return set
}

// #endregion types

// #region extractor

// Extractor turns raw documents into Features. Extraction is reused across
// many pairwise comparisons, so results are cached keyed by content hash.
type Extractor struct {
	mu    sync.RWMutex
	cache map[string]*Features
}

// NewExtractor creates an Extractor with an empty feature cache.
func NewExtractor() *Extractor {
	return &Extractor{cache: make(map[string]*Features)}
}

// Extract computes (or returns the cached) features for a document.
func (e *Extractor) Extract(doc model.Document) *Features {
	if doc.ContentHash != "" {
		e.mu.RLock()
		cached, ok := e.cache[doc.ContentHash]
		e.mu.RUnlock()
		if ok {
			return cached
		}
	}

	f := extract(doc)

	if doc.ContentHash != "" {
		e.mu.Lock()
		e.cache[doc.ContentHash] = f
		e.mu.Unlock()
	}
	return f
}

// #endregion extractor

// #region extract

// extract is the pure extraction function, no cache involvement.
func extract(doc model.Document) *Features {
	toks := tokens(doc.Text)

	tf := make(map[string]float64, len(toks))
	for _, t := range toks {
		tf[t]++
	}
	if n := float64(len(toks)); n > 0 {
		for t := range tf {
			tf[t] /= n
		}
	}

	f := &Features{
		ContentHash:    doc.ContentHash,
		NormalizedText: joinTokens(toks),
		Tokens:         toks,
		TermFreq:       tf,
		TemporalBucket: temporalBucket(doc),
		SourceType:     doc.Source.Type,
		SourceName:     doc.Source.Name,
	}

	for _, ent := range doc.Entities {
		name := lowerName(ent.Name)
		if name == "" {
			continue
		}
		switch ent.Type {
		case model.EntityPerson:
			f.Persons = append(f.Persons, name)
		case model.EntityOrganization:
			f.Organizations = append(f.Organizations, name)
		case model.EntityLocation:
			f.Locations = append(f.Locations, name)
		}
	}

	return f
}

// temporalBucket returns the coarse "YYYY-MM" bucket of the document's
// creation time, or "unknown" when no timestamp is available.
func temporalBucket(doc model.Document) string {
	if doc.CreatedAt.IsZero() {
		return "unknown"
	}
	return doc.CreatedAt.UTC().Format("2006-01")
}

// #endregion extract
