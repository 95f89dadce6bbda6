package domain

// Pipeline is a named workflow for one object type. IsDefault marks the
// pipeline new records enter automatically.
type Pipeline struct {
	ID                 string          `json:"id"`
	OrganizationID     string          `json:"organizationId"`
	ObjectDefinitionID string          `json:"objectDefinitionId"`
	Label              string          `json:"label"`
	IsDefault          bool            `json:"isDefault"`
	AllowSkipStages    bool            `json:"allowSkipStages"`
	RecordCount        int             `json:"recordCount"`
	Stages             []PipelineStage `json:"stages"`
	Archived           bool            `json:"archived"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
}

// StageOutcome marks a stage as a terminal state for reporting.
type StageOutcome string

const (
	OutcomeOpen StageOutcome = "open"
	OutcomeWon  StageOutcome = "won"
	OutcomeLost StageOutcome = "lost"
)

// PipelineStage is one ordered step in a pipeline.
type PipelineStage struct {
	ID          string       `json:"id"`
	PipelineID  string       `json:"pipelineId"`
	Label       string       `json:"label"`
	StageOrder  int          `json:"stageOrder"`
	Color       string       `json:"color,omitempty"`
	Probability *float64     `json:"probability,omitempty"`
	Outcome     StageOutcome `json:"outcome"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

// RecordStage is a record's current position in one pipeline. At most one
// row exists per (record, pipeline); stage moves are upserts.
type RecordStage struct {
	RecordID          string   `json:"recordId"`
	PipelineID        string   `json:"pipelineId"`
	StageID           string   `json:"stageId"`
	StageName         string   `json:"stageName"`
	EnteredAt         string   `json:"enteredAt"`
	TimeInStage       int64    `json:"timeInStage"` // seconds, derived at read time
	Amount            *float64 `json:"amount,omitempty"`
	Probability       *float64 `json:"probability,omitempty"`
	ExpectedCloseDate string   `json:"expectedCloseDate,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// MoveInput carries the optional deal-tracking fields of a stage move.
type MoveInput struct {
	Amount            *float64 `json:"amount,omitempty"`
	Probability       *float64 `json:"probability,omitempty"`
	ExpectedCloseDate string   `json:"expectedCloseDate,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// StageTransition is one append-only stage-history row. Rows are never
// mutated or deleted.
type StageTransition struct {
	ID                      string   `json:"id"`
	OrganizationID          string   `json:"organizationId"`
	RecordID                string   `json:"recordId"`
	PipelineID              string   `json:"pipelineId"`
	FromStageID             string   `json:"fromStageId,omitempty"`
	ToStageID               string   `json:"toStageId"`
	TransitionedAt          string   `json:"transitionedAt"`
	SecondsInPreviousStage  int64    `json:"secondsInPreviousStage"`
	AmountAtTransition      *float64 `json:"amountAtTransition,omitempty"`
	ProbabilityAtTransition *float64 `json:"probabilityAtTransition,omitempty"`
}

// AutomationTrigger names the condition that fires a stage automation.
type AutomationTrigger string

const (
	TriggerEnterStage  AutomationTrigger = "enter_stage"
	TriggerExitStage   AutomationTrigger = "exit_stage"
	TriggerTimeInStage AutomationTrigger = "time_in_stage"
)

// AutomationAction names the side effect an external runner performs.
type AutomationAction string

const (
	ActionCreateTask     AutomationAction = "create_task"
	ActionSendEmail      AutomationAction = "send_email"
	ActionUpdateProperty AutomationAction = "update_property"
	ActionNotifyOwner    AutomationAction = "notify_owner"
)

// StageAutomation is a declarative trigger→action rule. The core records the
// rule and execution bookkeeping; an external runner performs the action.
type StageAutomation struct {
	ID             string            `json:"id"`
	PipelineID     string            `json:"pipelineId"`
	StageID        string            `json:"stageId"`
	Trigger        AutomationTrigger `json:"trigger"`
	Action         AutomationAction  `json:"action"`
	ActionConfig   string            `json:"actionConfig,omitempty"`
	Enabled        bool              `json:"enabled"`
	ExecutionCount int               `json:"executionCount"`
	LastExecutedAt string            `json:"lastExecutedAt,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`
}
