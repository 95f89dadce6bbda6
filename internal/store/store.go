package store

import (
	"database/sql"

	"github.com/craftboard/platform/internal/locks"
)

// Store holds all sub-stores used by the application.
type Store struct {
	DB           *sql.DB
	Registry     Registry
	Records      RecordStore
	Search       SearchStore
	Associations AssociationStore
	Pipelines    PipelineStore
	Lists        ListStore
	Audit        AuditStore
	Counters     CounterStore
}

// New creates a Store with all sub-stores initialized and wired together.
func New(db *sql.DB) *Store {
	lockMgr := locks.NewManager()

	audit := NewSQLiteAuditStore(db)
	registry := NewSQLiteRegistry(db)
	counters := NewSQLiteCounterStore(db, lockMgr)
	associations := NewSQLiteAssociationStore(db, audit)
	pipelines := NewSQLitePipelineStore(db, audit, counters)
	records := NewSQLiteRecordStore(db, registry, audit, associations, pipelines)
	search := NewSQLiteSearchStore(db)
	lists := NewSQLiteListStore(db, audit, counters, search)

	return &Store{
		DB:           db,
		Registry:     registry,
		Records:      records,
		Search:       search,
		Associations: associations,
		Pipelines:    pipelines,
		Lists:        lists,
		Audit:        audit,
		Counters:     counters,
	}
}
