// Package postgres persists the booking data in PostgreSQL through sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/harentsoaR/dentist-booking/internal/models"
	"github.com/harentsoaR/dentist-booking/internal/store"
)

type Config struct {
	DSN      string
	MaxConns int
	Timeout  time.Duration
}

type Storage struct {
	db *sqlx.DB
}

// Connect opens a pool and verifies connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*Storage, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return New(sqlx.NewDb(sqlDB, "postgres")), nil
}

func New(db *sqlx.DB) *Storage { return &Storage{db: db} }

func (s *Storage) Users() store.Users               { return userRepo{s.db} }
func (s *Storage) Patients() store.Patients         { return patientRepo{s.db} }
func (s *Storage) Appointments() store.Appointments { return appointmentRepo{s.db} }

func (s *Storage) Close(context.Context) error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL CHECK (role IN ('ADMIN','DENTIST','STAFF','PATIENT')),
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
CREATE TABLE IF NOT EXISTS patients (
  id BIGSERIAL PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS appointments (
  id BIGSERIAL PRIMARY KEY,
  patient_id BIGINT NOT NULL REFERENCES patients(id),
  staff_id BIGINT REFERENCES users(id),
  scheduled_date TIMESTAMPTZ NOT NULL,
  problem_desc TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  notes TEXT,
  follow_up_needed BOOLEAN,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_appointments_scheduled_date ON appointments(scheduled_date);
CREATE INDEX IF NOT EXISTS idx_appointments_staff_id ON appointments(staff_id);
`

// Migrate creates the tables if they do not exist. It is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}

// --- users ---

type userRepo struct{ db *sqlx.DB }

const userColumns = `id, email, password, first_name, last_name, role, created_at`

func (r userRepo) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return u, mapError(err)
}

func (r userRepo) FindByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, mapError(err)
}

func (r userRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	const q = `INSERT INTO users (email, password, first_name, last_name, role)
		VALUES (:email, :password, :first_name, :last_name, :role) RETURNING id, created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		return models.User{}, mapError(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.User{}, mapError(err)
		}
		return models.User{}, errors.New("insert user: no id returned")
	}
	if err := rows.Scan(&u.ID, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (r userRepo) List(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	return users, mapError(err)
}

func (r userRepo) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = $1`, role)
	return n, err
}

func (r userRepo) UpdateRole(ctx context.Context, id int64, role models.Role) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, role)
	return u, mapError(err)
}

// --- patients ---

type patientRepo struct{ db *sqlx.DB }

func (r patientRepo) Create(ctx context.Context, p models.Patient) (models.Patient, error) {
	err := r.db.GetContext(ctx, &p.ID,
		`INSERT INTO patients (first_name, last_name, email) VALUES ($1, $2, $3) RETURNING id`,
		p.FirstName, p.LastName, p.Email)
	return p, mapError(err)
}

func (r patientRepo) FindByID(ctx context.Context, id int64) (models.Patient, error) {
	var p models.Patient
	err := r.db.GetContext(ctx, &p, `SELECT id, first_name, last_name, email FROM patients WHERE id = $1`, id)
	return p, mapError(err)
}

// --- appointments ---

type appointmentRepo struct{ db *sqlx.DB }

const selectJoined = `
SELECT a.id, a.patient_id, a.staff_id, a.scheduled_date, a.problem_desc, a.status,
       a.notes, a.follow_up_needed, a.created_at,
       p.first_name AS p_first_name, p.last_name AS p_last_name, p.email AS p_email,
       s.first_name AS s_first_name, s.last_name AS s_last_name, s.email AS s_email, s.role AS s_role
  FROM appointments a
  JOIN patients p ON p.id = a.patient_id
  LEFT JOIN users s ON s.id = a.staff_id`

type appointmentRow struct {
	ID             int64     `db:"id"`
	PatientID      int64     `db:"patient_id"`
	StaffID        *int64    `db:"staff_id"`
	ScheduledDate  time.Time `db:"scheduled_date"`
	ProblemDesc    string    `db:"problem_desc"`
	Status         string    `db:"status"`
	Notes          *string   `db:"notes"`
	FollowUpNeeded *bool     `db:"follow_up_needed"`
	CreatedAt      time.Time `db:"created_at"`
	PFirstName     string    `db:"p_first_name"`
	PLastName      string    `db:"p_last_name"`
	PEmail         string    `db:"p_email"`
	SFirstName     *string   `db:"s_first_name"`
	SLastName      *string   `db:"s_last_name"`
	SEmail         *string   `db:"s_email"`
	SRole          *string   `db:"s_role"`
}

func (row appointmentRow) model() models.Appointment {
	a := models.Appointment{
		ID:             row.ID,
		PatientID:      row.PatientID,
		StaffID:        row.StaffID,
		ScheduledDate:  row.ScheduledDate.UTC(),
		ProblemDesc:    row.ProblemDesc,
		Status:         models.Status(row.Status),
		Notes:          row.Notes,
		FollowUpNeeded: row.FollowUpNeeded,
		CreatedAt:      row.CreatedAt.UTC(),
		Patient: &models.Patient{
			ID:        row.PatientID,
			FirstName: row.PFirstName,
			LastName:  row.PLastName,
			Email:     row.PEmail,
		},
	}
	if row.StaffID != nil && row.SEmail != nil {
		a.Staff = &models.StaffSummary{
			ID:        *row.StaffID,
			FirstName: deref(row.SFirstName),
			LastName:  deref(row.SLastName),
			Email:     *row.SEmail,
			Role:      models.Role(deref(row.SRole)),
		}
	}
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r appointmentRepo) Create(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		`INSERT INTO appointments (patient_id, staff_id, scheduled_date, problem_desc, status, notes, follow_up_needed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.PatientID, a.StaffID, a.ScheduledDate, a.ProblemDesc, a.Status, a.Notes, a.FollowUpNeeded)
	if err != nil {
		return models.Appointment{}, mapError(err)
	}
	return r.FindByID(ctx, id)
}

func (r appointmentRepo) FindByID(ctx context.Context, id int64) (models.Appointment, error) {
	var row appointmentRow
	if err := r.db.GetContext(ctx, &row, selectJoined+` WHERE a.id = $1`, id); err != nil {
		return models.Appointment{}, mapError(err)
	}
	return row.model(), nil
}

func (r appointmentRepo) List(ctx context.Context) ([]models.Appointment, error) {
	var rows []appointmentRow
	if err := r.db.SelectContext(ctx, &rows, selectJoined+` ORDER BY a.scheduled_date ASC, a.id ASC`); err != nil {
		return nil, mapError(err)
	}
	out := make([]models.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// Update folds the guard into the WHERE clause, so the check and the write
// are one statement.
func (r appointmentRepo) Update(ctx context.Context, id int64, upd store.AppointmentUpdate) (models.Appointment, error) {
	args := []any{id}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var sets []string
	if upd.Status != nil {
		sets = append(sets, "status = "+arg(string(*upd.Status)))
	}
	if upd.Notes != nil {
		sets = append(sets, "notes = "+arg(*upd.Notes))
	}
	if upd.FollowUpNeeded != nil {
		sets = append(sets, "follow_up_needed = "+arg(*upd.FollowUpNeeded))
	}
	if upd.AssignStaffID != nil {
		sets = append(sets, "staff_id = "+arg(*upd.AssignStaffID))
	}

	where := "id = $1"
	switch upd.Guard.Kind {
	case store.GuardUnassigned:
		where += " AND staff_id IS NULL"
	case store.GuardUnassignedOrOwner:
		where += " AND (staff_id IS NULL OR staff_id = " + arg(upd.Guard.OwnerID) + ")"
	}

	var q string
	if len(sets) == 0 {
		q = `SELECT id FROM appointments WHERE ` + where
	} else {
		q = `UPDATE appointments SET ` + strings.Join(sets, ", ") + ` WHERE ` + where + ` RETURNING id`
	}

	var updated int64
	err := r.db.GetContext(ctx, &updated, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
			return models.Appointment{}, err
		}
		if !exists {
			return models.Appointment{}, store.ErrNotFound
		}
		return models.Appointment{}, store.ErrPreconditionFailed
	}
	if err != nil {
		return models.Appointment{}, mapError(err)
	}
	return r.FindByID(ctx, updated)
}
