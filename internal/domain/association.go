package domain

// Cardinality constrains how many edges of a type each endpoint may carry.
type Cardinality string

const (
	OneToOne   Cardinality = "one-to-one"
	OneToMany  Cardinality = "one-to-many"
	ManyToOne  Cardinality = "many-to-one"
	ManyToMany Cardinality = "many-to-many"
)

// ValidCardinality reports whether c is a member of the enumeration.
func ValidCardinality(c Cardinality) bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// CascadePolicy controls which endpoint's archival end-dates the edge.
type CascadePolicy string

const (
	CascadeNone CascadePolicy = "none"
	CascadeFrom CascadePolicy = "from"
	CascadeTo   CascadePolicy = "to"
	CascadeBoth CascadePolicy = "both"
)

// AssociationType declares a permitted relationship shape between two object
// types. The (from, to, name) triple is unique.
type AssociationType struct {
	ID               string        `json:"id"`
	FromObjectTypeID string        `json:"fromObjectTypeId"`
	ToObjectTypeID   string        `json:"toObjectTypeId"`
	Name             string        `json:"name"`
	Label            string        `json:"label"`
	InverseLabel     string        `json:"inverseLabel,omitempty"`
	Cardinality      Cardinality   `json:"cardinality"`
	FromMin          int           `json:"fromMin"`
	FromMax          int           `json:"fromMax,omitempty"` // 0 = unbounded
	ToMin            int           `json:"toMin"`
	ToMax            int           `json:"toMax,omitempty"` // 0 = unbounded
	CascadeDelete    CascadePolicy `json:"cascadeDelete"`
	IsSystemType     bool          `json:"isSystemType"`
	CreatedAt        string        `json:"createdAt"`
}

// Association is a directed edge between two records. An edge is active while
// EndDate is empty; dissociation end-dates it rather than deleting the row.
type Association struct {
	ID             string            `json:"id"`
	TypeID         string            `json:"typeId"`
	FromRecordID   string            `json:"fromRecordId"`
	ToRecordID     string            `json:"toRecordId"`
	OrganizationID string            `json:"organizationId"`
	Properties     map[string]string `json:"properties,omitempty"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate,omitempty"`
	CreatedAt      string            `json:"createdAt"`
}

// AssociationView pairs an edge with its resolved type label and the
// counterpart record, as returned by graph reads.
type AssociationView struct {
	TypeID      string            `json:"typeId"`
	TypeName    string            `json:"typeName"`
	Label       string            `json:"label"`
	Counterpart *Record           `json:"counterpart"`
	Properties  map[string]string `json:"properties,omitempty"`
	StartDate   string            `json:"startDate"`
}

// AssociationDirection selects which endpoint a graph read starts from.
type AssociationDirection string

const (
	DirectionFrom AssociationDirection = "from"
	DirectionTo   AssociationDirection = "to"
)

// OrganizationAssociationLabel renames a system association type's display
// label for one organization without altering its semantics.
type OrganizationAssociationLabel struct {
	OrganizationID    string `json:"organizationId"`
	AssociationTypeID string `json:"associationTypeId"`
	Label             string `json:"label"`
	InverseLabel      string `json:"inverseLabel,omitempty"`
}
