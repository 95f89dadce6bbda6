package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/craftboard/platform/internal/domain"
	"github.com/craftboard/platform/internal/seed"
	"github.com/craftboard/platform/internal/store"
)

var _ store.PipelineStore = (*store.SQLitePipelineStore)(nil)

func defaultPipeline(t *testing.T, s *store.Store, rc domain.RequestContext) *domain.Pipeline {
	t.Helper()
	pipelines, err := s.Pipelines.List(context.Background(), rc, seed.DealTypeID)
	if err != nil {
		t.Fatalf("list pipelines: %v", err)
	}
	for _, p := range pipelines {
		if p.IsDefault {
			return p
		}
	}
	t.Fatal("no default deal pipeline seeded")
	return nil
}

func stageByLabel(t *testing.T, p *domain.Pipeline, label string) domain.PipelineStage {
	t.Helper()
	for _, st := range p.Stages {
		if st.Label == label {
			return st
		}
	}
	t.Fatalf("stage %q not in pipeline %s", label, p.ID)
	return domain.PipelineStage{}
}

func TestCreatePipeline(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	p, err := s.Pipelines.Create(ctx, rc, &domain.Pipeline{
		ObjectDefinitionID: seed.TaskTypeID,
		Label:              "Task Flow",
		AllowSkipStages:    false,
		Stages: []domain.PipelineStage{
			{Label: "To Do"},
			{Label: "Doing"},
			{Label: "Done", Outcome: domain.OutcomeWon},
		},
	})
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	if len(p.Stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(p.Stages))
	}
	for i, st := range p.Stages {
		if st.StageOrder != i {
			t.Errorf("stage %d order = %d", i, st.StageOrder)
		}
	}
	if p.Stages[0].Outcome != domain.OutcomeOpen {
		t.Errorf("default outcome = %q, want open", p.Stages[0].Outcome)
	}

	// No stages is rejected.
	_, err = s.Pipelines.Create(ctx, rc, &domain.Pipeline{
		ObjectDefinitionID: seed.TaskTypeID,
		Label:              "Empty",
	})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestDefaultPipelineDemotion(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	old := defaultPipeline(t, s, rc)
	p, err := s.Pipelines.Create(ctx, rc, &domain.Pipeline{
		ObjectDefinitionID: seed.DealTypeID,
		Label:              "Enterprise Pipeline",
		IsDefault:          true,
		AllowSkipStages:    true,
		Stages:             []domain.PipelineStage{{Label: "Discovery"}, {Label: "Close"}},
	})
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}

	refreshed, err := s.Pipelines.Get(ctx, rc, old.ID)
	if err != nil {
		t.Fatalf("get old pipeline: %v", err)
	}
	if refreshed.IsDefault {
		t.Error("old default pipeline was not demoted")
	}
	if got := defaultPipeline(t, s, rc); got.ID != p.ID {
		t.Errorf("default pipeline = %s, want %s", got.ID, p.ID)
	}
}

func TestMoveToStageRecordsHistory(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	deal := mustCreate(t, s, rc, "deal", map[string]string{"title": "Big Deal"})
	p := defaultPipeline(t, s, rc)
	proposal := stageByLabel(t, p, "Proposal")

	amount := 5000.0
	rs, err := s.Pipelines.MoveToStage(ctx, rc, deal.ID, p.ID, proposal.ID, domain.MoveInput{Amount: &amount})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if rs.StageID != proposal.ID {
		t.Errorf("stage = %s, want %s", rs.StageID, proposal.ID)
	}
	if rs.Amount == nil || *rs.Amount != 5000 {
		t.Errorf("amount = %v", rs.Amount)
	}

	history, err := s.Pipelines.ListStageHistory(ctx, rc, deal.ID, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// Entry into the default pipeline plus the move.
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].FromStageID != "" {
		t.Errorf("first transition fromStage = %q, want empty", history[0].FromStageID)
	}
	if history[1].FromStageID != history[0].ToStageID {
		t.Errorf("second transition fromStage = %q, want %q", history[1].FromStageID, history[0].ToStageID)
	}
	if history[1].SecondsInPreviousStage < 0 {
		t.Errorf("seconds in previous stage = %d", history[1].SecondsInPreviousStage)
	}
}

func TestMoveToStageValidation(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	deal := mustCreate(t, s, rc, "deal", map[string]string{"title": "Deal"})
	p := defaultPipeline(t, s, rc)

	// Stage from another pipeline fails fast.
	other, err := s.Pipelines.Create(ctx, rc, &domain.Pipeline{
		ObjectDefinitionID: seed.DealTypeID,
		Label:              "Other",
		AllowSkipStages:    true,
		Stages:             []domain.PipelineStage{{Label: "Only"}},
	})
	if err != nil {
		t.Fatalf("create other pipeline: %v", err)
	}
	_, err = s.Pipelines.MoveToStage(ctx, rc, deal.ID, p.ID, other.Stages[0].ID, domain.MoveInput{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// Negative amount and out-of-range probability are rejected.
	bad := -1.0
	_, err = s.Pipelines.MoveToStage(ctx, rc, deal.ID, p.ID, stageByLabel(t, p, "Proposal").ID, domain.MoveInput{Amount: &bad})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for negative amount, got %v", err)
	}
	over := 150.0
	_, err = s.Pipelines.MoveToStage(ctx, rc, deal.ID, p.ID, stageByLabel(t, p, "Proposal").ID, domain.MoveInput{Probability: &over})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation for probability > 100, got %v", err)
	}
}

func TestSameStageMoveUpdatesFieldsOnly(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	deal := mustCreate(t, s, rc, "deal", map[string]string{"title": "Deal"})
	p := defaultPipeline(t, s, rc)

	before, err := s.Pipelines.ListStageHistory(ctx, rc, deal.ID, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	current, err := s.Pipelines.GetRecordStage(ctx, rc, deal.ID, p.ID)
	if err != nil {
		t.Fatalf("record stage: %v", err)
	}
	amount := 1234.0
	rs, err := s.Pipelines.MoveToStage(ctx, rc, deal.ID, p.ID, current.StageID, domain.MoveInput{Amount: &amount, Notes: "updated"})
	if err != nil {
		t.Fatalf("same-stage move: %v", err)
	}
	if rs.Amount == nil || *rs.Amount != 1234 {
		t.Errorf("amount = %v", rs.Amount)
	}
	if rs.Notes != "updated" {
		t.Errorf("notes = %q", rs.Notes)
	}
	if rs.EnteredAt != current.EnteredAt {
		t.Errorf("entered_at changed on same-stage move")
	}

	after, err := s.Pipelines.ListStageHistory(ctx, rc, deal.ID, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("same-stage move appended history: %d vs %d", len(after), len(before))
	}
}

func TestSkipStagesRejectedWhenDisallowed(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	p, err := s.Pipelines.Create(ctx, rc, &domain.Pipeline{
		ObjectDefinitionID: seed.TaskTypeID,
		Label:              "Strict Flow",
		AllowSkipStages:    false,
		Stages:             []domain.PipelineStage{{Label: "One"}, {Label: "Two"}, {Label: "Three"}},
	})
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	task := mustCreate(t, s, rc, "task", map[string]string{"title": "T"})

	// First placement can land anywhere.
	if _, err := s.Pipelines.MoveToStage(ctx, rc, task.ID, p.ID, p.Stages[0].ID, domain.MoveInput{}); err != nil {
		t.Fatalf("enter pipeline: %v", err)
	}

	// One -> Three skips Two.
	_, err = s.Pipelines.MoveToStage(ctx, rc, task.ID, p.ID, p.Stages[2].ID, domain.MoveInput{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for skip, got %v", err)
	}

	// Adjacent moves work, both directions.
	if _, err := s.Pipelines.MoveToStage(ctx, rc, task.ID, p.ID, p.Stages[1].ID, domain.MoveInput{}); err != nil {
		t.Fatalf("forward move: %v", err)
	}
	if _, err := s.Pipelines.MoveToStage(ctx, rc, task.ID, p.ID, p.Stages[0].ID, domain.MoveInput{}); err != nil {
		t.Fatalf("backward move: %v", err)
	}
}

func TestRemoveFromPipeline(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	deal := mustCreate(t, s, rc, "deal", map[string]string{"title": "Deal"})
	p := defaultPipeline(t, s, rc)

	if err := s.Pipelines.RemoveFromPipeline(ctx, rc, deal.ID, p.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Pipelines.GetRecordStage(ctx, rc, deal.ID, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after removal, got %v", err)
	}

	// History survives removal.
	history, err := s.Pipelines.ListStageHistory(ctx, rc, deal.ID, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) == 0 {
		t.Error("history dropped on removal")
	}

	// Counter reflects the removal.
	refreshed, err := s.Pipelines.Get(ctx, rc, p.ID)
	if err != nil {
		t.Fatalf("get pipeline: %v", err)
	}
	if refreshed.RecordCount != 0 {
		t.Errorf("record count = %d, want 0", refreshed.RecordCount)
	}
}

func TestPipelineRecordCount(t *testing.T) {
	s, rc := newTestStore(t)
	p := defaultPipeline(t, s, rc)

	for i := 0; i < 3; i++ {
		mustCreate(t, s, rc, "deal", map[string]string{"title": "Deal"})
	}

	refreshed, err := s.Pipelines.Get(context.Background(), rc, p.ID)
	if err != nil {
		t.Fatalf("get pipeline: %v", err)
	}
	if refreshed.RecordCount != 3 {
		t.Errorf("record count = %d, want 3", refreshed.RecordCount)
	}
}

func TestStageAutomations(t *testing.T) {
	s, rc := newTestStore(t)
	ctx := context.Background()

	p := defaultPipeline(t, s, rc)
	stage := stageByLabel(t, p, "Proposal")

	a, err := s.Pipelines.CreateAutomation(ctx, rc, &domain.StageAutomation{
		PipelineID:   p.ID,
		StageID:      stage.ID,
		Trigger:      domain.TriggerEnterStage,
		Action:       domain.ActionCreateTask,
		ActionConfig: `{"title":"Follow up on proposal"}`,
		Enabled:      true,
	})
	if err != nil {
		t.Fatalf("create automation: %v", err)
	}

	// Unknown trigger is rejected.
	_, err = s.Pipelines.CreateAutomation(ctx, rc, &domain.StageAutomation{
		PipelineID: p.ID,
		StageID:    stage.ID,
		Trigger:    "on_full_moon",
		Action:     domain.ActionSendEmail,
	})
	if !errors.Is(err, domain.ErrSchemaViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}

	if err := s.Pipelines.RecordAutomationRun(ctx, a.ID); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := s.Pipelines.SetAutomationEnabled(ctx, rc, a.ID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	automations, err := s.Pipelines.ListAutomations(ctx, rc, p.ID)
	if err != nil {
		t.Fatalf("list automations: %v", err)
	}
	if len(automations) != 1 {
		t.Fatalf("automations = %d, want 1", len(automations))
	}
	got := automations[0]
	if got.ExecutionCount != 1 {
		t.Errorf("execution count = %d, want 1", got.ExecutionCount)
	}
	if got.Enabled {
		t.Error("automation still enabled")
	}
	if got.LastExecutedAt == "" {
		t.Error("last executed at not recorded")
	}
}
