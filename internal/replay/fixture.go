package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string            `json:"description"`
	Documents       []FixtureDocument `json:"documents"`
	ExpectedResults []ExpectedResult  `json:"expected_results"`
}

// FixtureEntity mirrors model.Entity with JSON tags.
type FixtureEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// FixtureDocument is one JSON-serializable input document.
type FixtureDocument struct {
	Text        string            `json:"text"`
	SourceName  string            `json:"source_name"`
	SourceType  string            `json:"source_type"`
	Reliability float64           `json:"reliability"`
	CreatedAt   string            `json:"created_at"` // RFC3339
	Entities    []FixtureEntity   `json:"entities"`
	Metadata    map[string]string `json:"metadata"`
}

// ExpectedResult captures the expected pipeline outcome per document index.
type ExpectedResult struct {
	Index          int  `json:"index"`
	Isolated       bool `json:"isolated"`
	ClusterSize    int  `json:"cluster_size"`
	ThreatsCreated int  `json:"threats_created"`
	ThreatsUpdated int  `json:"threats_updated"`
	Requests       int  `json:"requests"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToDocument converts a fixture document to a domain Document. The content
// hash is derived from the normalized text, matching the ingest path.
func (fd *FixtureDocument) ToDocument() model.Document {
	createdAt, err := time.Parse(time.RFC3339, fd.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}

	entities := make([]model.Entity, 0, len(fd.Entities))
	for _, e := range fd.Entities {
		entities = append(entities, model.Entity{
			Name:       e.Name,
			Type:       model.EntityType(e.Type),
			Confidence: e.Confidence,
		})
	}

	return model.Document{
		ContentHash: model.HashContent(feature.Normalize(fd.Text)),
		Text:        fd.Text,
		Entities:    entities,
		Source: model.Source{
			Name:        fd.SourceName,
			Type:        fd.SourceType,
			Reliability: fd.Reliability,
		},
		CreatedAt: createdAt,
		Metadata:  fd.Metadata,
	}
}

// FromDocuments builds an expectation-free fixture from stored documents,
// used when replaying a database rather than a hand-written fixture.
func FromDocuments(docs []model.Document) *Fixture {
	f := &Fixture{Description: "database replay"}
	for _, d := range docs {
		fd := FixtureDocument{
			Text:        d.Text,
			SourceName:  d.Source.Name,
			SourceType:  d.Source.Type,
			Reliability: d.Source.Reliability,
			CreatedAt:   d.CreatedAt.Format(time.RFC3339),
			Metadata:    d.Metadata,
		}
		for _, e := range d.Entities {
			fd.Entities = append(fd.Entities, FixtureEntity{
				Name:       e.Name,
				Type:       string(e.Type),
				Confidence: e.Confidence,
			})
		}
		f.Documents = append(f.Documents, fd)
	}
	return f
}

// #endregion fixture-loader
