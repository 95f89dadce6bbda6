package domain

// Audit actions recorded by the mutating operations.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionArchived      = "archived"
	ActionUnarchived    = "unarchived"
	ActionAssociated    = "associated"
	ActionDissociated   = "dissociated"
	ActionStageMoved    = "stage_moved"
	ActionStageRemoved  = "stage_removed"
	ActionMemberAdded   = "member_added"
	ActionMemberRemoved = "member_removed"
	ActionDefined       = "defined"
)

// AuditLog is one immutable change-log row. Previous/new values are JSON
// objects restricted to the changed fields.
type AuditLog struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	EntityType     EntityKind `json:"entityType"`
	EntityID       string     `json:"entityId"`
	Action         string     `json:"action"`
	ChangedFields  []string   `json:"changedFields,omitempty"`
	PreviousValues string     `json:"previousValues,omitempty"`
	NewValues      string     `json:"newValues,omitempty"`
	ActorID        string     `json:"actorId"`
	Source         string     `json:"source"`
	CreatedAt      string     `json:"createdAt"`
}

// PropertyHistory is one per-property change row.
type PropertyHistory struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	RecordID       string `json:"recordId"`
	PropertyName   string `json:"propertyName"`
	PreviousValue  string `json:"previousValue,omitempty"`
	NewValue       string `json:"newValue"`
	ActorID        string `json:"actorId"`
	Source         string `json:"source"`
	ChangedAt      string `json:"changedAt"`
}

// BulkOperationLog records aggregate success/failure/skip counts for one bulk
// operation, plus enough rollback data to reverse a reversible one.
type BulkOperationLog struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	EntityType     EntityKind `json:"entityType"`
	Action         string     `json:"action"`
	SuccessCount   int        `json:"successCount"`
	FailureCount   int        `json:"failureCount"`
	SkippedCount   int        `json:"skippedCount"`
	Errors         string     `json:"errors,omitempty"`       // JSON array of BatchError
	RollbackData   string     `json:"rollbackData,omitempty"` // JSON payload
	WasRolledBack  bool       `json:"wasRolledBack"`
	ActorID        string     `json:"actorId"`
	StartedAt      string     `json:"startedAt"`
	CompletedAt    string     `json:"completedAt"`
}
