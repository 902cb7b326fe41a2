package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ebrodeur/recoupement/internal/cache"
	"github.com/ebrodeur/recoupement/internal/classifier"
	"github.com/ebrodeur/recoupement/internal/config"
	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/pipeline"
	"github.com/ebrodeur/recoupement/internal/store"
	"github.com/ebrodeur/recoupement/internal/threat"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize document store
	docStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer docStore.Close()

	// Connect to the anomaly classifier sidecar if enabled
	var clf threat.Classifier
	if cfg.Classifier.Enabled {
		client, err := classifier.NewClient(cfg.Classifier.Addr)
		if err != nil {
			log.Fatalf("failed to connect to classifier at %s: %v", cfg.Classifier.Addr, err)
		}
		defer client.Close()
		clf = client
	}

	orch := pipeline.New(docStore, cache.New(), nil, clf, cfg).
		WithProvenance(docStore.DB())

	fmt.Println("Recoupement engine ready.")
	fmt.Printf("  DB: %s | Classifier: %s (enabled=%v)\n", cfg.DBPath, cfg.Classifier.Addr, cfg.Classifier.Enabled)
	fmt.Println("Paste a document as JSON or raw text (or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	docNum := 0

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		docNum++
		doc, err := parseDocument(line)
		if err != nil {
			log.Printf("bad document: %v", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := docStore.InsertDocument(ctx, doc); err != nil {
			cancel()
			log.Printf("insert error: %v", err)
			continue
		}

		res, err := orch.Reevaluate(ctx, doc)
		cancel()
		if err != nil {
			log.Printf("reevaluation error: %v", err)
			continue
		}

		printResult(docNum, res)
	}
}

// #endregion main

// #region input

// inputDocument is the JSON shape accepted on stdin.
type inputDocument struct {
	Text        string            `json:"text"`
	Source      string            `json:"source"`
	Type        string            `json:"source_type"`
	Reliability float64           `json:"reliability"`
	Entities    []inputEntity     `json:"entities"`
	Metadata    map[string]string `json:"metadata"`
}

type inputEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// parseDocument accepts either a JSON document or a bare line of text.
func parseDocument(line string) (model.Document, error) {
	now := time.Now().UTC()

	if !strings.HasPrefix(line, "{") {
		return model.Document{
			ContentHash: model.HashContent(feature.Normalize(line)),
			Text:        line,
			Source:      model.Source{Name: "stdin", Type: "manual", Reliability: 0.5},
			CreatedAt:   now,
		}, nil
	}

	var in inputDocument
	if err := json.Unmarshal([]byte(line), &in); err != nil {
		return model.Document{}, fmt.Errorf("parse json: %w", err)
	}
	if in.Text == "" {
		return model.Document{}, fmt.Errorf("missing text field")
	}
	if in.Source == "" {
		in.Source = "stdin"
	}
	if in.Type == "" {
		in.Type = "manual"
	}
	if in.Reliability == 0 {
		in.Reliability = 0.5
	}

	entities := make([]model.Entity, 0, len(in.Entities))
	for _, e := range in.Entities {
		entities = append(entities, model.Entity{
			Name:       e.Name,
			Type:       model.EntityType(e.Type),
			Confidence: e.Confidence,
		})
	}

	return model.Document{
		ContentHash: model.HashContent(feature.Normalize(in.Text)),
		Text:        in.Text,
		Entities:    entities,
		Source:      model.Source{Name: in.Source, Type: in.Type, Reliability: in.Reliability},
		CreatedAt:   now,
		Metadata:    in.Metadata,
	}, nil
}

// #endregion input

// #region output

func printResult(docNum int, res pipeline.Result) {
	shape := "isolated"
	if !res.Isolated {
		shape = fmt.Sprintf("cluster %s (size=%d)", res.ClusterID, res.ClusterSize)
	}
	fmt.Printf("[doc-%d] %s | threats: +%d ~%d | prescriptions: +%d ~%d | requests: %d\n",
		docNum, shape,
		len(res.ThreatsCreated), len(res.ThreatsUpdated),
		len(res.PrescriptionsCreated), len(res.PrescriptionsUpdated),
		len(res.CollectionRequests))

	for _, t := range res.ThreatsCreated {
		fmt.Printf("  new threat %s score=%.3f severity=%s type=%s\n", t.ID, t.Score, t.Severity, t.Type)
	}
	for _, t := range res.ThreatsUpdated {
		fmt.Printf("  rescored %s score=%.3f delta=%+.3f severity=%s\n", t.ID, t.Score, t.DeltaScore, t.Severity)
	}
	for _, r := range res.CollectionRequests {
		fmt.Printf("  collection request %s urgency=%s discipline=%s zone=%s\n", r.ID, r.Urgency, r.Discipline, r.Zone)
	}
	for _, e := range res.ThreatErrors {
		fmt.Printf("  error (threat %s): %s\n", e.ThreatID, e.Err)
	}
	if res.Analysis != nil {
		fmt.Printf("  analysis: theme=%s (%.2f) risk=%.3f (%s) pattern=%s\n",
			res.Analysis.Theme, res.Analysis.ThemeConfidence, res.Analysis.RiskScore,
			res.Analysis.RiskLevel, res.Analysis.TemporalPattern)
	}
	if !res.Audit.Passed {
		fmt.Printf("  AUDIT FAILED: %v\n", res.Audit.FailReasons)
	}
}

// #endregion output
