package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradestore/internal/models"
)

type studentRow struct {
	ID           int64  `db:"id"`
	Login        string `db:"login"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	Email        string `db:"email"`
	Enabled      bool   `db:"enabled"`
	CollabPolicy bool   `db:"collab_policy"`
}

func (r studentRow) toModel() *models.Student {
	return &models.Student{
		ID:                     r.ID,
		Login:                  r.Login,
		FirstName:              r.FirstName,
		LastName:               r.LastName,
		Email:                  r.Email,
		Enabled:                r.Enabled,
		HasCollaborationPolicy: r.CollabPolicy,
	}
}

const studentColumns = `id, login, first_name, last_name, email, enabled, collab_policy`

// StudentRepository stores enrolled students.
type StudentRepository struct {
	exec *executor
}

func newStudentRepository(exec *executor) *StudentRepository {
	return &StudentRepository{exec: exec}
}

// PutAll inserts new students and updates known ones in one transaction.
func (r *StudentRepository) PutAll(ctx context.Context, students []*models.Student) error {
	batch := unique(students, studentID)
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "put students", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, s := range batch {
			if s.ID == 0 {
				id, err := insertID(ctx, tx, `INSERT INTO students (login, first_name, last_name, email, enabled, collab_policy)
                    VALUES (?, ?, ?, ?, ?, ?)`, s.Login, s.FirstName, s.LastName, s.Email, s.Enabled, s.HasCollaborationPolicy)
				if err != nil {
					return fmt.Errorf("insert student %q: %w", s.Login, err)
				}
				s := s
				h.add(func() { s.ID = id })
				continue
			}
			if err := updateOne(ctx, tx, "student", s.ID, `UPDATE students SET login = ?, first_name = ?, last_name = ?,
                email = ?, enabled = ?, collab_policy = ? WHERE id = ?`,
				s.Login, s.FirstName, s.LastName, s.Email, s.Enabled, s.HasCollaborationPolicy, s.ID); err != nil {
				return fmt.Errorf("update student %d: %w", s.ID, err)
			}
		}
		return nil
	})
}

// GetAll returns every student ordered by login.
func (r *StudentRepository) GetAll(ctx context.Context) ([]*models.Student, error) {
	var rows []studentRow
	err := r.exec.read(ctx, "get students", func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows, `SELECT `+studentColumns+` FROM students ORDER BY login`)
	})
	if err != nil {
		return nil, err
	}
	var out []*models.Student
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ByLogin returns the student with the login, or nil when there is none.
func (r *StudentRepository) ByLogin(ctx context.Context, login string) (*models.Student, error) {
	var row studentRow
	found := true
	err := r.exec.read(ctx, "get student by login", func(q sqlx.QueryerContext) error {
		err := sqlx.GetContext(ctx, q, &row, r.exec.rebind(`SELECT `+studentColumns+` FROM students WHERE login = ?`), login)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return row.toModel(), nil
}

// RemoveAll deletes the students with their memberships and blacklist entries. Groups left
// without members are deleted in the same transaction.
func (r *StudentRepository) RemoveAll(ctx context.Context, students []*models.Student) error {
	var batch []*models.Student
	for _, s := range unique(students, studentID) {
		if s.ID != 0 {
			batch = append(batch, s)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "remove students", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, s := range batch {
			if err := exec(ctx, tx, `DELETE FROM students WHERE id = ?`, s.ID); err != nil {
				return fmt.Errorf("delete student %d: %w", s.ID, err)
			}
			s := s
			h.add(func() { s.ID = 0 })
		}
		return deleteEmptyGroupsTx(ctx, tx)
	})
}

func deleteEmptyGroupsTx(ctx context.Context, tx *sqlx.Tx) error {
	if err := exec(ctx, tx, `DELETE FROM student_groups WHERE NOT EXISTS
        (SELECT 1 FROM group_members m WHERE m.group_id = student_groups.id)`); err != nil {
		return fmt.Errorf("delete empty groups: %w", err)
	}
	return nil
}

type taRow struct {
	ID            int64  `db:"id"`
	Login         string `db:"login"`
	FirstName     string `db:"first_name"`
	LastName      string `db:"last_name"`
	Admin         bool   `db:"admin"`
	DefaultGrader bool   `db:"default_grader"`
}

func (r taRow) toModel() *models.TA {
	return &models.TA{
		ID:            r.ID,
		Login:         r.Login,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Admin:         r.Admin,
		DefaultGrader: r.DefaultGrader,
	}
}

const taColumns = `id, login, first_name, last_name, admin, default_grader`

// TARepository stores teaching assistants.
type TARepository struct {
	exec *executor
}

func newTARepository(exec *executor) *TARepository {
	return &TARepository{exec: exec}
}

// PutAll inserts new TAs and updates known ones in one transaction.
func (r *TARepository) PutAll(ctx context.Context, tas []*models.TA) error {
	batch := unique(tas, taID)
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "put tas", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, t := range batch {
			if t.ID == 0 {
				id, err := insertID(ctx, tx, `INSERT INTO tas (login, first_name, last_name, admin, default_grader) VALUES (?, ?, ?, ?, ?)`,
					t.Login, t.FirstName, t.LastName, t.Admin, t.DefaultGrader)
				if err != nil {
					return fmt.Errorf("insert ta %q: %w", t.Login, err)
				}
				t := t
				h.add(func() { t.ID = id })
				continue
			}
			if err := updateOne(ctx, tx, "ta", t.ID,
				`UPDATE tas SET login = ?, first_name = ?, last_name = ?, admin = ?, default_grader = ? WHERE id = ?`,
				t.Login, t.FirstName, t.LastName, t.Admin, t.DefaultGrader, t.ID); err != nil {
				return fmt.Errorf("update ta %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// GetAll returns every TA ordered by login.
func (r *TARepository) GetAll(ctx context.Context) ([]*models.TA, error) {
	return r.list(ctx, "get tas", `SELECT `+taColumns+` FROM tas ORDER BY login`)
}

// DefaultGraders returns the TAs that receive groups in a default distribution.
func (r *TARepository) DefaultGraders(ctx context.Context) ([]*models.TA, error) {
	return r.list(ctx, "get default graders", `SELECT `+taColumns+` FROM tas WHERE default_grader = ? ORDER BY login`, true)
}

func (r *TARepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*models.TA, error) {
	var rows []taRow
	err := r.exec.read(ctx, op, func(q sqlx.QueryerContext) error {
		return sqlx.SelectContext(ctx, q, &rows, r.exec.rebind(query), args...)
	})
	if err != nil {
		return nil, err
	}
	var out []*models.TA
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// RemoveAll deletes the TAs. Their distribution and blacklist rows go with them; grade
// records they entered keep the score with no recording TA.
func (r *TARepository) RemoveAll(ctx context.Context, tas []*models.TA) error {
	var batch []*models.TA
	for _, t := range unique(tas, taID) {
		if t.ID != 0 {
			batch = append(batch, t)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	return r.exec.inTx(ctx, "remove tas", func(tx *sqlx.Tx, h *commitHooks) error {
		for _, t := range batch {
			if err := exec(ctx, tx, `DELETE FROM tas WHERE id = ?`, t.ID); err != nil {
				return fmt.Errorf("delete ta %d: %w", t.ID, err)
			}
			t := t
			h.add(func() { t.ID = 0 })
		}
		return nil
	})
}
