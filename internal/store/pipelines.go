package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/craftboard/platform/internal/domain"
)

// PipelineStore defines pipelines, the records' positions in them, and the
// append-only transition history.
type PipelineStore interface {
	Create(ctx context.Context, rc domain.RequestContext, p *domain.Pipeline) (*domain.Pipeline, error)
	Get(ctx context.Context, rc domain.RequestContext, id string) (*domain.Pipeline, error)
	List(ctx context.Context, rc domain.RequestContext, objectDefinitionID string) ([]*domain.Pipeline, error)
	Archive(ctx context.Context, rc domain.RequestContext, id string) error
	MoveToStage(ctx context.Context, rc domain.RequestContext, recordID, pipelineID, stageID string, input domain.MoveInput) (*domain.RecordStage, error)
	RemoveFromPipeline(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) error
	GetRecordStage(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) (*domain.RecordStage, error)
	ListStageHistory(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) ([]*domain.StageTransition, error)
	CreateAutomation(ctx context.Context, rc domain.RequestContext, a *domain.StageAutomation) (*domain.StageAutomation, error)
	ListAutomations(ctx context.Context, rc domain.RequestContext, pipelineID string) ([]*domain.StageAutomation, error)
	SetAutomationEnabled(ctx context.Context, rc domain.RequestContext, automationID string, enabled bool) error
	RecordAutomationRun(ctx context.Context, automationID string) error
}

// SQLitePipelineStore implements PipelineStore backed by SQLite.
type SQLitePipelineStore struct {
	db       *sql.DB
	audit    AuditStore
	counters CounterStore
}

// NewSQLitePipelineStore creates a new SQLitePipelineStore.
func NewSQLitePipelineStore(db *sql.DB, audit AuditStore, counters CounterStore) *SQLitePipelineStore {
	return &SQLitePipelineStore{db: db, audit: audit, counters: counters}
}

// Create inserts a pipeline and its ordered stages. Marking a pipeline as
// default demotes the object type's previous default.
func (s *SQLitePipelineStore) Create(ctx context.Context, rc domain.RequestContext, p *domain.Pipeline) (*domain.Pipeline, error) {
	if len(p.Stages) == 0 {
		return nil, domain.NewError(domain.KindSchemaViolation, "a pipeline needs at least one stage")
	}
	for _, st := range p.Stages {
		if st.Probability != nil && (*st.Probability < 0 || *st.Probability > 100) {
			return nil, domain.NewError(domain.KindSchemaViolation, "stage %q probability must be between 0 and 100", st.Label)
		}
		switch st.Outcome {
		case "", domain.OutcomeOpen, domain.OutcomeWon, domain.OutcomeLost:
		default:
			return nil, domain.NewError(domain.KindSchemaViolation, "stage %q has unknown outcome %q", st.Label, st.Outcome)
		}
	}

	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("create pipeline", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pipelines SET is_default = FALSE, updated_at = ? WHERE organization_id = ? AND object_definition_id = ?`,
			ts, rc.OrganizationID, p.ObjectDefinitionID,
		); err != nil {
			return nil, domain.WrapStorage("demote default pipeline", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pipelines (organization_id, object_definition_id, label, is_default, allow_skip_stages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rc.OrganizationID, p.ObjectDefinitionID, p.Label, p.IsDefault, p.AllowSkipStages, ts, ts,
	)
	if err != nil {
		return nil, domain.WrapStorage("insert pipeline", err)
	}
	pid, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapStorage("insert pipeline", err)
	}
	p.ID = formatID(pid)
	p.OrganizationID = rc.OrganizationID
	p.CreatedAt = ts
	p.UpdatedAt = ts

	for i := range p.Stages {
		st := &p.Stages[i]
		if st.Outcome == "" {
			st.Outcome = domain.OutcomeOpen
		}
		st.StageOrder = i
		res, err := tx.ExecContext(ctx,
			`INSERT INTO pipeline_stages (pipeline_id, label, stage_order, color, probability, outcome, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			pid, st.Label, st.StageOrder, st.Color, st.Probability, string(st.Outcome), ts, ts,
		)
		if err != nil {
			return nil, domain.WrapStorage("insert pipeline stage", err)
		}
		sid, err := res.LastInsertId()
		if err != nil {
			return nil, domain.WrapStorage("insert pipeline stage", err)
		}
		st.ID = formatID(sid)
		st.PipelineID = p.ID
		st.CreatedAt = ts
		st.UpdatedAt = ts
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityPipeline,
		EntityID:       p.ID,
		Action:         domain.ActionDefined,
		NewValues:      mustJSON(p),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("create pipeline", err)
	}
	return p, nil
}

// Get fetches a pipeline with its stages in order.
func (s *SQLitePipelineStore) Get(ctx context.Context, rc domain.RequestContext, id string) (*domain.Pipeline, error) {
	var p domain.Pipeline
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, object_definition_id, label, is_default, allow_skip_stages, record_count, archived, created_at, updated_at
		 FROM pipelines WHERE id = ? AND organization_id = ?`,
		id, rc.OrganizationID,
	).Scan(&p.ID, &p.OrganizationID, &p.ObjectDefinitionID, &p.Label, &p.IsDefault,
		&p.AllowSkipStages, &p.RecordCount, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "pipeline %s not found", id)
	}
	p.ID = id

	p.Stages, err = s.loadStages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLitePipelineStore) loadStages(ctx context.Context, pipelineID string) ([]domain.PipelineStage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, label, stage_order, COALESCE(color, ''), probability, outcome, created_at, updated_at
		 FROM pipeline_stages WHERE pipeline_id = ? ORDER BY stage_order`,
		pipelineID,
	)
	if err != nil {
		return nil, domain.WrapStorage("load pipeline stages", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []domain.PipelineStage
	for rows.Next() {
		var st domain.PipelineStage
		if err := rows.Scan(&st.ID, &st.PipelineID, &st.Label, &st.StageOrder,
			&st.Color, &st.Probability, &st.Outcome, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, domain.WrapStorage("scan pipeline stage", err)
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// List returns the organization's unarchived pipelines, optionally filtered
// by object type.
func (s *SQLitePipelineStore) List(ctx context.Context, rc domain.RequestContext, objectDefinitionID string) ([]*domain.Pipeline, error) {
	query := `SELECT id FROM pipelines WHERE organization_id = ? AND archived = FALSE`
	args := []any{rc.OrganizationID}
	if objectDefinitionID != "" {
		query += ` AND object_definition_id = ?`
		args = append(args, objectDefinitionID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapStorage("list pipelines", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapStorage("scan pipeline id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStorage("list pipelines", err)
	}

	pipelines := make([]*domain.Pipeline, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, rc, id)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

// Archive soft-deletes a pipeline. Stage history stays addressable.
func (s *SQLitePipelineStore) Archive(ctx context.Context, rc domain.RequestContext, id string) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipelines SET archived = TRUE, is_default = FALSE, updated_at = ? WHERE id = ? AND organization_id = ? AND archived = FALSE`,
		ts, id, rc.OrganizationID,
	)
	if err != nil {
		return domain.WrapStorage("archive pipeline", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "pipeline %s not found", id)
	}

	return s.audit.Append(ctx, s.db, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityPipeline,
		EntityID:       id,
		Action:         domain.ActionArchived,
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	})
}

// EnterDefaultPipeline puts a newly created record into its object type's
// default pipeline, if one exists, at the pipeline's first stage.
func (s *SQLitePipelineStore) EnterDefaultPipeline(ctx context.Context, rc domain.RequestContext, record *domain.Record) error {
	var pipelineID, stageID string
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, st.id
		 FROM pipelines p
		 JOIN pipeline_stages st ON st.pipeline_id = p.id
		 WHERE p.organization_id = ? AND p.object_definition_id = ? AND p.is_default = TRUE AND p.archived = FALSE
		 ORDER BY st.stage_order LIMIT 1`,
		rc.OrganizationID, record.ObjectDefinitionID,
	).Scan(&pipelineID, &stageID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return domain.WrapStorage("find default pipeline", err)
	}

	_, err = s.MoveToStage(ctx, rc, record.ID, pipelineID, stageID, domain.MoveInput{})
	return err
}

// MoveToStage records that a record entered a stage. The stage must belong
// to the pipeline; moves that skip stages are rejected when the pipeline
// forbids skipping. Moving to the current stage updates the tracking fields
// without a history row. The history row captures time spent in the previous
// stage. The pipeline's record counter is recomputed after commit; a recount
// failure is logged and left for the sweep.
func (s *SQLitePipelineStore) MoveToStage(ctx context.Context, rc domain.RequestContext, recordID, pipelineID, stageID string, input domain.MoveInput) (*domain.RecordStage, error) {
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return nil, err
	}
	pipeline, err := s.Get(ctx, rc, pipelineID)
	if err != nil {
		return nil, err
	}
	if pipeline.Archived {
		return nil, domain.NewError(domain.KindConflict, "pipeline %s is archived", pipelineID)
	}

	var target *domain.PipelineStage
	for i := range pipeline.Stages {
		if pipeline.Stages[i].ID == stageID {
			target = &pipeline.Stages[i]
			break
		}
	}
	if target == nil {
		return nil, domain.NewError(domain.KindInvalidTransition, "stage %s is not part of pipeline %s", stageID, pipelineID)
	}
	if input.Amount != nil && *input.Amount < 0 {
		return nil, domain.NewError(domain.KindSchemaViolation, "amount cannot be negative")
	}
	if input.Probability != nil && (*input.Probability < 0 || *input.Probability > 100) {
		return nil, domain.NewError(domain.KindSchemaViolation, "probability must be between 0 and 100")
	}

	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("move to stage", err)
	}
	defer func() { _ = tx.Rollback() }()

	var fromStageID, enteredAt sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT stage_id, entered_at FROM record_stages WHERE record_id = ? AND pipeline_id = ?`,
		recordID, pipelineID,
	).Scan(&fromStageID, &enteredAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, domain.WrapStorage("load record stage", err)
	}

	if fromStageID.Valid && fromStageID.String == stageID {
		// Same stage: refresh the tracking fields, keep entered_at, no
		// history row.
		if _, err := tx.ExecContext(ctx,
			`UPDATE record_stages SET amount = COALESCE(?, amount), probability = COALESCE(?, probability),
			        expected_close_date = COALESCE(NULLIF(?, ''), expected_close_date),
			        notes = COALESCE(NULLIF(?, ''), notes), updated_at = ?
			 WHERE record_id = ? AND pipeline_id = ?`,
			input.Amount, input.Probability, input.ExpectedCloseDate, input.Notes, ts, recordID, pipelineID,
		); err != nil {
			return nil, domain.WrapStorage("update record stage", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, domain.WrapStorage("move to stage", err)
		}
		return s.GetRecordStage(ctx, rc, recordID, pipelineID)
	}

	if fromStageID.Valid && !pipeline.AllowSkipStages {
		if err := checkAdjacent(pipeline.Stages, fromStageID.String, stageID); err != nil {
			return nil, err
		}
	}

	var secondsInPrev int64
	if enteredAt.Valid {
		secondsInPrev = secondsBetween(enteredAt.String, time.Now().UTC())
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO record_stages (record_id, pipeline_id, stage_id, entered_at, amount, probability, expected_close_date, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)
		 ON CONFLICT(record_id, pipeline_id) DO UPDATE SET
		   stage_id = excluded.stage_id, entered_at = excluded.entered_at,
		   amount = COALESCE(excluded.amount, record_stages.amount),
		   probability = COALESCE(excluded.probability, record_stages.probability),
		   expected_close_date = COALESCE(excluded.expected_close_date, record_stages.expected_close_date),
		   notes = COALESCE(excluded.notes, record_stages.notes),
		   updated_at = excluded.updated_at`,
		recordID, pipelineID, stageID, ts, input.Amount, input.Probability, input.ExpectedCloseDate, input.Notes, ts,
	); err != nil {
		return nil, domain.WrapStorage("upsert record stage", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stage_history (organization_id, record_id, pipeline_id, from_stage_id, to_stage_id, transitioned_at, seconds_in_previous_stage, amount_at_transition, probability_at_transition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.OrganizationID, recordID, pipelineID, nullable(fromStageID.String), stageID, ts, secondsInPrev, input.Amount, input.Probability,
	); err != nil {
		return nil, domain.WrapStorage("insert stage history", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       recordID,
		Action:         domain.ActionStageMoved,
		PreviousValues: mustJSON(map[string]string{"stageId": fromStageID.String}),
		NewValues:      mustJSON(map[string]string{"pipelineId": pipelineID, "stageId": stageID}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("move to stage", err)
	}

	if !fromStageID.Valid {
		if _, err := s.counters.RecountPipeline(ctx, pipelineID); err != nil {
			slog.Error("pipeline recount failed", "pipeline_id", pipelineID, "error", err)
		}
	}
	return s.GetRecordStage(ctx, rc, recordID, pipelineID)
}

// checkAdjacent rejects moves between non-neighbouring stages.
func checkAdjacent(stages []domain.PipelineStage, fromID, toID string) error {
	fromOrder, toOrder := -1, -1
	for _, st := range stages {
		if st.ID == fromID {
			fromOrder = st.StageOrder
		}
		if st.ID == toID {
			toOrder = st.StageOrder
		}
	}
	diff := toOrder - fromOrder
	if diff < 0 {
		diff = -diff
	}
	if diff != 1 {
		return domain.NewError(domain.KindInvalidTransition,
			"pipeline does not allow skipping stages")
	}
	return nil
}

// RemoveFromPipeline drops a record's current position. History rows stay.
func (s *SQLitePipelineStore) RemoveFromPipeline(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) error {
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return err
	}
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("remove from pipeline", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM record_stages WHERE record_id = ? AND pipeline_id = ?`,
		recordID, pipelineID,
	)
	if err != nil {
		return domain.WrapStorage("remove from pipeline", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "record %s is not in pipeline %s", recordID, pipelineID)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityRecord,
		EntityID:       recordID,
		Action:         domain.ActionStageRemoved,
		PreviousValues: mustJSON(map[string]string{"pipelineId": pipelineID}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("remove from pipeline", err)
	}

	if _, err := s.counters.RecountPipeline(ctx, pipelineID); err != nil {
		slog.Error("pipeline recount failed", "pipeline_id", pipelineID, "error", err)
	}
	return nil
}

// GetRecordStage returns a record's current position in a pipeline, with
// time-in-stage derived at read time.
func (s *SQLitePipelineStore) GetRecordStage(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) (*domain.RecordStage, error) {
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return nil, err
	}

	var rs domain.RecordStage
	var closeDate, notes sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT rs.record_id, rs.pipeline_id, rs.stage_id, st.label, rs.entered_at, rs.amount, rs.probability, rs.expected_close_date, rs.notes
		 FROM record_stages rs
		 JOIN pipeline_stages st ON st.id = rs.stage_id
		 WHERE rs.record_id = ? AND rs.pipeline_id = ?`,
		recordID, pipelineID,
	).Scan(&rs.RecordID, &rs.PipelineID, &rs.StageID, &rs.StageName, &rs.EnteredAt,
		&rs.Amount, &rs.Probability, &closeDate, &notes)
	if err != nil {
		return nil, domain.NewError(domain.KindNotFound, "record %s is not in pipeline %s", recordID, pipelineID)
	}
	rs.ExpectedCloseDate = closeDate.String
	rs.Notes = notes.String
	rs.TimeInStage = secondsBetween(rs.EnteredAt, time.Now().UTC())
	return &rs, nil
}

// ListStageHistory returns a record's transitions in one pipeline, oldest
// first.
func (s *SQLitePipelineStore) ListStageHistory(ctx context.Context, rc domain.RequestContext, recordID, pipelineID string) ([]*domain.StageTransition, error) {
	if _, err := recordBelongsTo(ctx, s.db, rc, recordID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, record_id, pipeline_id, from_stage_id, to_stage_id, transitioned_at, seconds_in_previous_stage, amount_at_transition, probability_at_transition
		 FROM stage_history WHERE record_id = ? AND pipeline_id = ? AND organization_id = ?
		 ORDER BY id`,
		recordID, pipelineID, rc.OrganizationID,
	)
	if err != nil {
		return nil, domain.WrapStorage("list stage history", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*domain.StageTransition
	for rows.Next() {
		var t domain.StageTransition
		var from sql.NullString
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.RecordID, &t.PipelineID,
			&from, &t.ToStageID, &t.TransitionedAt, &t.SecondsInPreviousStage,
			&t.AmountAtTransition, &t.ProbabilityAtTransition); err != nil {
			return nil, domain.WrapStorage("scan stage transition", err)
		}
		t.FromStageID = from.String
		history = append(history, &t)
	}
	return history, rows.Err()
}

// CreateAutomation registers a trigger→action rule on a pipeline stage.
func (s *SQLitePipelineStore) CreateAutomation(ctx context.Context, rc domain.RequestContext, a *domain.StageAutomation) (*domain.StageAutomation, error) {
	pipeline, err := s.Get(ctx, rc, a.PipelineID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, st := range pipeline.Stages {
		if st.ID == a.StageID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.NewError(domain.KindNotFound, "stage %s is not part of pipeline %s", a.StageID, a.PipelineID)
	}
	switch a.Trigger {
	case domain.TriggerEnterStage, domain.TriggerExitStage, domain.TriggerTimeInStage:
	default:
		return nil, domain.NewError(domain.KindSchemaViolation, "unknown automation trigger %q", a.Trigger)
	}
	switch a.Action {
	case domain.ActionCreateTask, domain.ActionSendEmail, domain.ActionUpdateProperty, domain.ActionNotifyOwner:
	default:
		return nil, domain.NewError(domain.KindSchemaViolation, "unknown automation action %q", a.Action)
	}

	ts := now()
	config := a.ActionConfig
	if config == "" {
		config = "{}"
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapStorage("insert stage automation", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO stage_automations (pipeline_id, stage_id, trigger_type, action_type, action_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PipelineID, a.StageID, string(a.Trigger), string(a.Action), config, a.Enabled, ts, ts,
	)
	if err != nil {
		return nil, domain.WrapStorage("insert stage automation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.WrapStorage("insert stage automation", err)
	}
	a.ID = formatID(id)
	a.ActionConfig = config
	a.CreatedAt = ts
	a.UpdatedAt = ts

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityPipeline,
		EntityID:       a.PipelineID,
		Action:         domain.ActionDefined,
		NewValues:      mustJSON(a),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.WrapStorage("insert stage automation", err)
	}
	return a, nil
}

// ListAutomations returns a pipeline's automations in creation order.
func (s *SQLitePipelineStore) ListAutomations(ctx context.Context, rc domain.RequestContext, pipelineID string) ([]*domain.StageAutomation, error) {
	if _, err := s.Get(ctx, rc, pipelineID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pipeline_id, stage_id, trigger_type, action_type, action_config, enabled, execution_count, last_executed_at, created_at, updated_at
		 FROM stage_automations WHERE pipeline_id = ? ORDER BY id`,
		pipelineID,
	)
	if err != nil {
		return nil, domain.WrapStorage("list stage automations", err)
	}
	defer func() { _ = rows.Close() }()

	var automations []*domain.StageAutomation
	for rows.Next() {
		var a domain.StageAutomation
		var lastRun sql.NullString
		if err := rows.Scan(&a.ID, &a.PipelineID, &a.StageID, &a.Trigger, &a.Action,
			&a.ActionConfig, &a.Enabled, &a.ExecutionCount, &lastRun, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, domain.WrapStorage("scan stage automation", err)
		}
		a.LastExecutedAt = lastRun.String
		automations = append(automations, &a)
	}
	return automations, rows.Err()
}

// SetAutomationEnabled toggles a rule on or off.
func (s *SQLitePipelineStore) SetAutomationEnabled(ctx context.Context, rc domain.RequestContext, automationID string, enabled bool) error {
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapStorage("toggle stage automation", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pipelineID string
	err = tx.QueryRowContext(ctx,
		`SELECT pipeline_id FROM stage_automations
		 WHERE id = ? AND pipeline_id IN (SELECT id FROM pipelines WHERE organization_id = ?)`,
		automationID, rc.OrganizationID,
	).Scan(&pipelineID)
	if err != nil {
		return domain.NewError(domain.KindNotFound, "automation %s not found", automationID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stage_automations SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, ts, automationID,
	); err != nil {
		return domain.WrapStorage("toggle stage automation", err)
	}

	if err := s.audit.Append(ctx, tx, &domain.AuditLog{
		OrganizationID: rc.OrganizationID,
		EntityType:     domain.EntityPipeline,
		EntityID:       pipelineID,
		Action:         domain.ActionUpdated,
		NewValues:      mustJSON(map[string]any{"automationId": automationID, "enabled": enabled}),
		ActorID:        rc.UserID,
		Source:         rc.Source,
		CreatedAt:      ts,
	}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapStorage("toggle stage automation", err)
	}
	return nil
}

// RecordAutomationRun bumps the execution bookkeeping after an external
// runner performs the action.
func (s *SQLitePipelineStore) RecordAutomationRun(ctx context.Context, automationID string) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE stage_automations SET execution_count = execution_count + 1, last_executed_at = ?, updated_at = ? WHERE id = ?`,
		ts, ts, automationID,
	)
	if err != nil {
		return domain.WrapStorage("record automation run", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.NewError(domain.KindNotFound, "automation %s not found", automationID)
	}
	return nil
}
