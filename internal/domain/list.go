package domain

import "encoding/json"

// List processing types.
const (
	ListManual  = "MANUAL"
	ListDynamic = "DYNAMIC"
)

// List is a static or query-defined grouping of records. MemberCount is
// denormalized and kept consistent by the counter subsystem.
type List struct {
	ID                 string          `json:"id"`
	OrganizationID     string          `json:"organizationId"`
	Name               string          `json:"name"`
	ObjectDefinitionID string          `json:"objectDefinitionId"`
	ProcessingType     string          `json:"processingType"`
	FilterBranch       json.RawMessage `json:"filterBranch,omitempty"`
	MemberCount        int             `json:"memberCount"`
	Archived           bool            `json:"archived"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
}

// ListMembership is one record's membership row. Pinned and Excluded are
// manual overrides applied on top of a dynamic list's filter results.
type ListMembership struct {
	ListID   string `json:"listId"`
	RecordID string `json:"recordId"`
	AddedAt  string `json:"addedAt"`
	Pinned   bool   `json:"pinned"`
	Excluded bool   `json:"excluded"`
}

// MembershipPage is a cursor page of memberships.
type MembershipPage struct {
	Results []ListMembership `json:"results"`
	After   string           `json:"after,omitempty"`
	HasMore bool             `json:"hasMore"`
}
