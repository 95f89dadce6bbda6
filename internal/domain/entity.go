package domain

import "fmt"

// EntityKind names a kind of platform entity that can be referenced
// polymorphically (audit rows, counters, labels). The set is closed;
// constructing a reference with an unknown kind is a programming error.
type EntityKind string

const (
	EntityRecord          EntityKind = "record"
	EntityObjectType      EntityKind = "object_type"
	EntityAssociation     EntityKind = "association"
	EntityAssociationType EntityKind = "association_type"
	EntityPipeline        EntityKind = "pipeline"
	EntityList            EntityKind = "list"
	EntitySchema          EntityKind = "schema"
)

var knownEntityKinds = map[EntityKind]bool{
	EntityRecord:          true,
	EntityObjectType:      true,
	EntityAssociation:     true,
	EntityAssociationType: true,
	EntityPipeline:        true,
	EntityList:            true,
	EntitySchema:          true,
}

// EntityRef identifies one entity of a known kind.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

// NewEntityRef builds a reference, panicking on an unknown kind so that bad
// references are caught in development rather than persisted.
func NewEntityRef(kind EntityKind, id string) EntityRef {
	if !knownEntityKinds[kind] {
		panic(fmt.Sprintf("unknown entity kind %q", kind))
	}
	return EntityRef{Kind: kind, ID: id}
}

// Key returns the stable "<kind>_<id>" form used for advisory lock keys and
// audit rows.
func (r EntityRef) Key() string {
	return string(r.Kind) + "_" + r.ID
}

// RequestContext carries the authenticated tenant identity supplied by the
// auth layer. Every store operation takes one; the core trusts it completely.
type RequestContext struct {
	OrganizationID string
	UserID         string
	Source         string
}
