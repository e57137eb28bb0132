package repository

import (
	"context"

	"github.com/campusops/enrollsync/internal/db"

	"github.com/jackc/pgx/v5"
)

// pgStore implements Store over a pgx pool. Inside InTx every repository
// shares the same transaction.
type pgStore struct {
	conn *db.Connection
	q    db.Querier
}

// NewStore wires a Postgres-backed store.
func NewStore(conn *db.Connection) Store {
	return &pgStore{conn: conn, q: conn.Pool}
}

func (s *pgStore) Batches() BatchRepository        { return &batchRepository{q: s.q} }
func (s *pgStore) Enrollments() EnrollmentRepository { return &enrollmentRepository{q: s.q} }
func (s *pgStore) Audits() AuditRepository         { return &auditRepository{q: s.q} }

func (s *pgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgStore{conn: s.conn, q: tx})
	})
}
