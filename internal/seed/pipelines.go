package seed

import (
	"context"
	"database/sql"
	"fmt"
)

type stageDef struct {
	label       string
	probability float64
	outcome     string
}

var defaultDealStages = []stageDef{
	{label: "Qualification", probability: 10, outcome: "open"},
	{label: "Proposal", probability: 40, outcome: "open"},
	{label: "Negotiation", probability: 70, outcome: "open"},
	{label: "Closed Won", probability: 100, outcome: "won"},
	{label: "Closed Lost", probability: 0, outcome: "lost"},
}

// Pipelines inserts the demo organization's default deal pipeline if it has
// no pipelines yet.
func Pipelines(ctx context.Context, db *sql.DB) error {
	var existing int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pipelines WHERE organization_id = ?`, DemoOrgID,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("count pipelines: %w", err)
	}
	if existing > 0 {
		return nil
	}

	ts := now()
	res, err := db.ExecContext(ctx,
		`INSERT INTO pipelines (organization_id, object_definition_id, label, is_default, allow_skip_stages, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, TRUE, ?, ?)`,
		DemoOrgID, DealTypeID, "Sales Pipeline", ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert default pipeline: %w", err)
	}
	pipelineID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert default pipeline: %w", err)
	}

	for i, st := range defaultDealStages {
		_, err := db.ExecContext(ctx,
			`INSERT INTO pipeline_stages (pipeline_id, label, stage_order, probability, outcome, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pipelineID, st.label, i, st.probability, st.outcome, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.label, err)
		}
	}
	return nil
}
