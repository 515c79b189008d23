package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is one write inside a Batch. Records are pointers to model structs
// whose primary key is already set.
type Mutation struct {
	Op     Op
	Record any
	// Columns limits an update to the named fields (Go field names).
	Columns []string
	// Guard restricts an update or delete to rows still matching every
	// column = value pair. A guarded mutation that matches no row is skipped,
	// unless Strict is set, in which case the whole batch fails with ErrStale.
	Guard  map[string]any
	Strict bool
}

// ErrStale aborts a batch whose strict guard no longer matches.
var ErrStale = errors.New("record changed concurrently")

// Batch collects ledger writes that must land together. It is built by the
// services and committed by Store.Apply in a single transaction.
type Batch struct {
	mutations []Mutation
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Create(records ...any) *Batch {
	for _, r := range records {
		b.mutations = append(b.mutations, Mutation{Op: OpCreate, Record: r})
	}
	return b
}

func (b *Batch) Update(record any, columns ...string) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpUpdate, Record: record, Columns: columns})
	return b
}

// UpdateIf is Update guarded by the current column values.
func (b *Batch) UpdateIf(guard map[string]any, record any, columns ...string) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpUpdate, Record: record, Columns: columns, Guard: guard})
	return b
}

// UpdateStrict is UpdateIf that aborts the batch when the guard fails.
func (b *Batch) UpdateStrict(guard map[string]any, record any, columns ...string) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpUpdate, Record: record, Columns: columns, Guard: guard, Strict: true})
	return b
}

func (b *Batch) Delete(record any) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpDelete, Record: record})
	return b
}

// DeleteIf is Delete guarded by the current column values.
func (b *Batch) DeleteIf(guard map[string]any, record any) *Batch {
	b.mutations = append(b.mutations, Mutation{Op: OpDelete, Record: record, Guard: guard})
	return b
}

func (b *Batch) Mutations() []Mutation { return b.mutations }

func (b *Batch) Len() int { return len(b.mutations) }

// Store commits batches atomically: either every mutation is written or none.
type Store interface {
	Apply(ctx context.Context, b *Batch) error
}

type gormStore struct{ db *gorm.DB }

func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Apply(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ApplyTx(tx, b)
	})
}

// ApplyTx writes the batch inside an existing transaction. Associations are
// never cascaded: every record a batch touches is listed explicitly.
func ApplyTx(tx *gorm.DB, b *Batch) error {
	for _, m := range b.mutations {
		q := tx.Omit(clause.Associations)
		for col, val := range m.Guard {
			q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: val})
		}
		var res *gorm.DB
		switch m.Op {
		case OpCreate:
			res = q.Create(m.Record)
		case OpUpdate:
			q = q.Model(m.Record)
			if len(m.Columns) > 0 {
				q = q.Select(m.Columns)
			}
			res = q.Updates(m.Record)
		case OpDelete:
			res = q.Delete(m.Record)
		default:
			continue
		}
		if res.Error != nil {
			return res.Error
		}
		if m.Strict && res.RowsAffected == 0 {
			return ErrStale
		}
	}
	return nil
}
