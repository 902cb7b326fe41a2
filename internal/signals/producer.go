package signals

// #region imports
import (
	"github.com/ebrodeur/recoupement/internal/cluster"
	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/similarity"
)

// #endregion imports

// #region types

// Signals carries the per-document quality measures consumed by prescription
// generation and the collection-request guard.
type Signals struct {
	Credibility      float64 // blend of source reliability and cross-document coherence
	EntityCentrality float64 // how connected the document's entities are within its cluster
}

// ProducerConfig weights the credibility blend.
type ProducerConfig struct {
	ReliabilityWeight float64
	CoherenceWeight   float64
}

// DefaultProducerConfig returns the standard credibility blend.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ReliabilityWeight: 0.6,
		CoherenceWeight:   0.4,
	}
}

// #endregion types

// #region producer

// Producer computes heuristic signals from a document and its cluster context.
type Producer struct {
	extractor *feature.Extractor
	engine    *similarity.Engine
	config    ProducerConfig
}

// NewProducer creates a Producer over the shared extractor and engine.
func NewProducer(extractor *feature.Extractor, engine *similarity.Engine, config ProducerConfig) *Producer {
	return &Producer{extractor: extractor, engine: engine, config: config}
}

// Produce computes all signals for doc. c may be nil (isolated document):
// coherence and centrality degrade to 0, credibility rests on reliability alone.
func (p *Producer) Produce(doc model.Document, c *cluster.Cluster) Signals {
	return Signals{
		Credibility:      p.credibility(doc, c),
		EntityCentrality: p.centrality(doc, c),
	}
}

// #endregion producer

// #region credibility

// credibility blends source reliability with the document's mean similarity
// to its cluster siblings.
func (p *Producer) credibility(doc model.Document, c *cluster.Cluster) float64 {
	reliability := clamp(doc.Source.Reliability)
	coherence := p.coherence(doc, c)
	return clamp(p.config.ReliabilityWeight*reliability + p.config.CoherenceWeight*coherence)
}

func (p *Producer) coherence(doc model.Document, c *cluster.Cluster) float64 {
	if c == nil || len(c.Documents) < 2 {
		return 0
	}
	var sum float64
	others := 0
	for _, member := range c.Documents {
		if member.ContentHash == doc.ContentHash {
			continue
		}
		sum += p.engine.Similarity(doc, member)
		others++
	}
	if others == 0 {
		return 0
	}
	return clamp(sum / float64(others))
}

// #endregion credibility

// #region centrality

// centrality is the fraction of cluster siblings sharing at least one entity
// with the document.
func (p *Producer) centrality(doc model.Document, c *cluster.Cluster) float64 {
	if c == nil || len(c.Documents) < 2 {
		return 0
	}
	own := p.extractor.Extract(doc).EntitySet()
	if len(own) == 0 {
		return 0
	}

	connected := 0
	others := 0
	for _, member := range c.Documents {
		if member.ContentHash == doc.ContentHash {
			continue
		}
		others++
		memberSet := p.extractor.Extract(member).EntitySet()
		for name := range own {
			if memberSet[name] {
				connected++
				break
			}
		}
	}
	if others == 0 {
		return 0
	}
	return float64(connected) / float64(others)
}

// #endregion centrality

// #region helpers

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
