package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facecheck/internal/config"
	"github.com/your-org/facecheck/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Identities ---

func (s *PostgresStore) CreateIdentity(ctx context.Context, name, externalRef string) (*models.Identity, error) {
	id := &models.Identity{
		ID:          uuid.New(),
		Name:        name,
		ExternalRef: externalRef,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, external_ref) VALUES ($1, $2, $3) RETURNING created_at`,
		id.ID, id.Name, id.ExternalRef,
	).Scan(&id.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	ident := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, external_ref, created_at FROM identities WHERE id = $1`, id,
	).Scan(&ident.ID, &ident.Name, &ident.ExternalRef, &ident.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return ident, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, external_ref, created_at FROM identities ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var ident models.Identity
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.ExternalRef, &ident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, ident)
	}
	return identities, nil
}

// --- Enrollments ---

func (s *PostgresStore) InsertEnrollment(ctx context.Context, identityID uuid.UUID, emb []float64, sourceKey string) (*models.EnrollmentRecord, error) {
	rec := &models.EnrollmentRecord{
		ID:         uuid.New(),
		IdentityID: identityID,
		Embedding:  emb,
		SourceKey:  sourceKey,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO enrollments (id, identity_id, embedding, source_key) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		rec.ID, rec.IdentityID, toVector(emb), rec.SourceKey,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}
	return rec, nil
}

// DeleteEnrollment removes one enrollment and reports its source key so
// the caller can clean up the stored photo. found=false means no row
// matched the (identity, enrollment) pair.
func (s *PostgresStore) DeleteEnrollment(ctx context.Context, identityID, enrollmentID uuid.UUID) (string, bool, error) {
	var sourceKey string
	err := s.pool.QueryRow(ctx,
		`DELETE FROM enrollments WHERE id = $1 AND identity_id = $2 RETURNING source_key`,
		enrollmentID, identityID,
	).Scan(&sourceKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("delete enrollment: %w", err)
	}
	return sourceKey, true, nil
}

// DeleteEnrollmentsByIdentity removes all of an identity's enrollments
// and returns their source keys.
func (s *PostgresStore) DeleteEnrollmentsByIdentity(ctx context.Context, identityID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM enrollments WHERE identity_id = $1 RETURNING source_key`, identityID)
	if err != nil {
		return nil, fmt.Errorf("delete enrollments: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan source key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CountEnrollments(ctx context.Context, identityID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE identity_id = $1`, identityID,
	).Scan(&count)
	return count, err
}

// SelectAllEnrollments returns every enrollment record with its embedding,
// in stable enrollment order. The matcher's tie-break relies on this order.
func (s *PostgresStore) SelectAllEnrollments(ctx context.Context) ([]models.EnrollmentRecord, error) {
	return s.selectEnrollments(ctx,
		`SELECT id, identity_id, embedding, source_key, created_at
		 FROM enrollments ORDER BY created_at ASC, id ASC`)
}

// SelectEnrollmentsByIdentity returns one identity's enrollment records
// with embeddings, in stable enrollment order.
func (s *PostgresStore) SelectEnrollmentsByIdentity(ctx context.Context, identityID uuid.UUID) ([]models.EnrollmentRecord, error) {
	return s.selectEnrollments(ctx,
		`SELECT id, identity_id, embedding, source_key, created_at
		 FROM enrollments WHERE identity_id = $1 ORDER BY created_at ASC, id ASC`, identityID)
}

func (s *PostgresStore) selectEnrollments(ctx context.Context, query string, args ...interface{}) ([]models.EnrollmentRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select enrollments: %w", err)
	}
	defer rows.Close()

	var records []models.EnrollmentRecord
	for rows.Next() {
		var rec models.EnrollmentRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &vec, &rec.SourceKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		rec.Embedding = fromVector(vec)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Attendance ---

// InsertAttendanceIfAbsent atomically inserts an attendance record for
// (identity, date) unless one already exists. The UNIQUE constraint on
// (identity_id, attended_on) turns a concurrent race into a no-op insert;
// inserted=false means the day was already marked.
func (s *PostgresStore) InsertAttendanceIfAbsent(ctx context.Context, identityID uuid.UUID, date time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, bool, error) {
	rec := &models.AttendanceRecord{
		ID:         uuid.New(),
		IdentityID: identityID,
		Date:       models.Day(date),
		Status:     status,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendance (id, identity_id, attended_on, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity_id, attended_on) DO NOTHING
		 RETURNING created_at`,
		rec.ID, rec.IdentityID, rec.Date.Format(models.DateLayout), rec.Status,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) SelectAttendance(ctx context.Context, identityID uuid.UUID, date time.Time) (*models.AttendanceRecord, error) {
	rec := &models.AttendanceRecord{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, identity_id, attended_on, status, created_at
		 FROM attendance WHERE identity_id = $1 AND attended_on = $2`,
		identityID, models.Day(date).Format(models.DateLayout),
	).Scan(&rec.ID, &rec.IdentityID, &rec.Date, &rec.Status, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select attendance: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) SelectAttendanceHistory(ctx context.Context, identityID uuid.UUID) ([]models.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identity_id, attended_on, status, created_at
		 FROM attendance WHERE identity_id = $1 ORDER BY attended_on DESC`, identityID)
	if err != nil {
		return nil, fmt.Errorf("select attendance history: %w", err)
	}
	defer rows.Close()

	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.Date, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- pgvector conversion ---

// The embedding column is vector(128). pgvector stores float32; the
// float64 domain vectors are narrowed on write and widened on read,
// which is within the noise floor of the descriptor model.

func toVector(emb []float64) pgvector.Vector {
	f32 := make([]float32, len(emb))
	for i, v := range emb {
		f32[i] = float32(v)
	}
	return pgvector.NewVector(f32)
}

func fromVector(vec pgvector.Vector) []float64 {
	f32 := vec.Slice()
	out := make([]float64, len(f32))
	for i, v := range f32 {
		out[i] = float64(v)
	}
	return out
}
