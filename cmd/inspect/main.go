package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ebrodeur/recoupement/internal/logging"
	"github.com/ebrodeur/recoupement/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to recoupement.db")
	mode := flag.String("mode", "threats", "what to list: threats | prescriptions | log")
	last := flag.Int("last", 20, "show N most recent rows")
	threatID := flag.String("threat", "", "show single threat detail (with its prescription)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/recoupement.db [--mode threats|prescriptions|log] [--last N] [--threat id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *threatID != "" {
		err = runDetailMode(st, *threatID, *jsonOut)
	} else {
		switch *mode {
		case "threats":
			err = runThreatsMode(st.DB(), *last, *jsonOut)
		case "prescriptions":
			err = runPrescriptionsMode(st.DB(), *last, *jsonOut)
		case "log":
			err = runLogMode(st.DB(), *last, *jsonOut)
		default:
			err = fmt.Errorf("unknown mode %q", *mode)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region threats-mode

type threatRow struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	BaseScore   float64 `json:"base_score"`
	Delta       float64 `json:"delta_score"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	Type        string  `json:"type"`
	ClusterID   string  `json:"cluster_id,omitempty"`
	ClusterSize int     `json:"cluster_size"`
	UpdatedAt   string  `json:"updated_at"`
}

func runThreatsMode(db *sql.DB, last int, jsonOut bool) error {
	rows, err := db.Query(`
		SELECT id, score, base_score, delta_score, severity, status, type,
		       COALESCE(cluster_id, ''), cluster_size, updated_at
		FROM threats ORDER BY updated_at DESC LIMIT ?`, last)
	if err != nil {
		return err
	}
	defer rows.Close()

	var list []threatRow
	for rows.Next() {
		var r threatRow
		if err := rows.Scan(&r.ID, &r.Score, &r.BaseScore, &r.Delta, &r.Severity,
			&r.Status, &r.Type, &r.ClusterID, &r.ClusterSize, &r.UpdatedAt); err != nil {
			return err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(list)
	}
	fmt.Printf("%-38s %-7s %-7s %-7s %-9s %-9s %-22s %-5s\n",
		"ID", "SCORE", "BASE", "DELTA", "SEVERITY", "STATUS", "TYPE", "CSIZE")
	for _, r := range list {
		fmt.Printf("%-38s %-7.3f %-7.3f %+-7.3f %-9s %-9s %-22s %-5d\n",
			r.ID, r.Score, r.BaseScore, r.Delta, r.Severity, r.Status, r.Type, r.ClusterSize)
	}
	return nil
}

// #endregion threats-mode

// #region prescriptions-mode

type prescriptionRow struct {
	ID         string  `json:"id"`
	ThreatID   string  `json:"threat_id"`
	Priority   string  `json:"priority"`
	Category   string  `json:"category"`
	Actions    int     `json:"actions"`
	Confidence float64 `json:"confidence"`
	UpdatedAt  string  `json:"updated_at"`
}

func runPrescriptionsMode(db *sql.DB, last int, jsonOut bool) error {
	rows, err := db.Query(`
		SELECT id, threat_id, priority, category, actions_json, confidence, updated_at
		FROM prescriptions ORDER BY updated_at DESC LIMIT ?`, last)
	if err != nil {
		return err
	}
	defer rows.Close()

	var list []prescriptionRow
	for rows.Next() {
		var r prescriptionRow
		var actionsJSON string
		if err := rows.Scan(&r.ID, &r.ThreatID, &r.Priority, &r.Category,
			&actionsJSON, &r.Confidence, &r.UpdatedAt); err != nil {
			return err
		}
		var actions []json.RawMessage
		if err := json.Unmarshal([]byte(actionsJSON), &actions); err == nil {
			r.Actions = len(actions)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(list)
	}
	fmt.Printf("%-38s %-38s %-10s %-14s %-7s %-6s\n",
		"ID", "THREAT", "PRIORITY", "CATEGORY", "ACTS", "CONF")
	for _, r := range list {
		fmt.Printf("%-38s %-38s %-10s %-14s %-7d %-6.2f\n",
			r.ID, r.ThreatID, r.Priority, r.Category, r.Actions, r.Confidence)
	}
	return nil
}

// #endregion prescriptions-mode

// #region log-mode

func runLogMode(db *sql.DB, last int, jsonOut bool) error {
	entries, err := logging.ListRecent(db, last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(entries)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s %-38s %s→%s",
			e.CreatedAt.Format("2006-01-02T15:04:05Z"), e.Decision, e.Subject,
			fmtScore(e.ScoreBefore), fmtScore(e.ScoreAfter))
		if e.Reason != "" {
			fmt.Printf("  (%s)", e.Reason)
		}
		fmt.Println()
	}
	return nil
}

// #endregion log-mode

// #region detail-mode

func runDetailMode(st *store.SQLiteStore, threatID string, jsonOut bool) error {
	ctx := context.Background()

	t, err := st.GetThreat(ctx, threatID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("threat %s not found", threatID)
	}
	p, err := st.GetPrescriptionByThreat(ctx, threatID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{"threat": t, "prescription": p})
	}

	fmt.Printf("threat %s\n", t.ID)
	fmt.Printf("  score=%.3f (base %.3f, delta %+.3f)  severity=%s  status=%s\n",
		t.Score, t.BaseScore, t.DeltaScore, t.Severity, t.Status)
	fmt.Printf("  type=%s  cluster=%s size=%d\n", t.Type, t.ClusterID, t.ClusterSize)
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	if p == nil {
		fmt.Println("  no prescription")
		return nil
	}
	fmt.Printf("prescription %s  priority=%s  category=%s  confidence=%.2f\n",
		p.ID, p.Priority, p.Category, p.Confidence)
	for _, a := range p.Actions {
		fmt.Printf("  - [%s] %s\n", a.Type, a.Description)
	}
	if len(p.Resources) > 0 {
		fmt.Printf("  resources: %s\n", strings.Join(p.Resources, ", "))
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtScore(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// #endregion helpers
