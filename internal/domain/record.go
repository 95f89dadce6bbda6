package domain

// Record is a property-bag instance of an object type, scoped to one
// organization. DisplayName and SearchVector are derived on every write.
type Record struct {
	ID                 string            `json:"id"`
	ObjectDefinitionID string            `json:"objectDefinitionId"`
	OrganizationID     string            `json:"organizationId"`
	Properties         map[string]string `json:"properties"`
	DisplayName        string            `json:"displayName"`
	SearchVector       string            `json:"-"`
	Archived           bool              `json:"archived"`
	ArchivedAt         string            `json:"archivedAt,omitempty"`
	CreatedAt          string            `json:"createdAt"`
	UpdatedAt          string            `json:"updatedAt"`

	// Associations is populated only when a read asks for it.
	Associations []AssociationView `json:"associations,omitempty"`
}

// CreateInput holds the data needed to create a new record.
type CreateInput struct {
	Properties map[string]string `json:"properties"`
}

// UpdateInput holds the data needed to update an existing record.
type UpdateInput struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// GetOpts controls what a single-record read returns.
type GetOpts struct {
	Properties   []string
	Associations bool
}

// BatchError describes one failed item in a batch operation.
type BatchError struct {
	Index    int    `json:"index"`
	RecordID string `json:"recordId,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// BatchResult aggregates per-item outcomes of a batch operation. Failures are
// isolated; the batch never aborts on an item error.
type BatchResult struct {
	OperationID string       `json:"operationId"`
	Results     []*Record    `json:"results"`
	Success     int          `json:"success"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	Errors      []BatchError `json:"errors,omitempty"`
	StartedAt   string       `json:"startedAt"`
	CompletedAt string       `json:"completedAt"`
}
