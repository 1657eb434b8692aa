package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/aquafloor/projectguard/internal/model"
)

// ManagerRepo maintains the manager roster.  Protections reference
// managers by display name, so renames and deletions cascade into the
// protections table inside one transaction.
type ManagerRepo struct {
	db *sql.DB
}

// NewManagerRepo returns a ManagerRepo bound to the given database.
func NewManagerRepo(db *sql.DB) *ManagerRepo { return &ManagerRepo{db: db} }

// mysqlDuplicateEntry is the server error code for unique violations.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// List returns the roster ordered by name.
func (r *ManagerRepo) List(ctx context.Context) ([]model.Manager, error) {
	const q = `SELECT id, name, created_at FROM managers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Manager, 0)
	for rows.Next() {
		var m model.Manager
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// RosterEntry is one roster row with the manager's protection counts,
// for the admin listing.
type RosterEntry struct {
	ID      uint64 `json:"id"`
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Active  int    `json:"active"`
	Success int    `json:"success"`
	Closed  int    `json:"closed"`
}

// ListWithCounts returns the roster joined with per-status protection
// counts, ordered by name.
func (r *ManagerRepo) ListWithCounts(ctx context.Context) ([]RosterEntry, error) {
	const q = `SELECT m.id, m.name,
	        COALESCE(t.total, 0), COALESCE(t.active, 0),
	        COALESCE(t.success, 0), COALESCE(t.closed, 0)
	    FROM managers m
	    LEFT JOIN (
	        SELECT manager,
	               COUNT(*) AS total,
	               SUM(CASE WHEN status='active'  THEN 1 ELSE 0 END) AS active,
	               SUM(CASE WHEN status='success' THEN 1 ELSE 0 END) AS success,
	               SUM(CASE WHEN status='closed'  THEN 1 ELSE 0 END) AS closed
	        FROM protections
	        GROUP BY manager
	    ) t ON t.manager = m.name
	    ORDER BY m.name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]RosterEntry, 0)
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Total, &e.Active, &e.Success, &e.Closed); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a manager to the roster.  ErrDuplicateName is returned
// when the name already exists.
func (r *ManagerRepo) Create(ctx context.Context, name string) (*model.Manager, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO managers (name, created_at) VALUES (?, ?)`, name, now)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Manager{ID: uint64(id), Name: name, CreatedAt: now}, nil
}

// Rename changes a manager's name and cascades it into every
// protection they own, atomically.
func (r *ManagerRepo) Rename(ctx context.Context, id uint64, newName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var oldName string
	err = tx.QueryRowContext(ctx, `SELECT name FROM managers WHERE id = ?`, id).Scan(&oldName)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE managers SET name = ? WHERE id = ?`, newName, id); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateName
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE protections SET manager = ? WHERE manager = ?`, newName, oldName); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a manager from the roster.  When the manager still
// owns protections a transfer target is mandatory; the protections are
// reassigned to it in the same transaction.
func (r *ManagerRepo) Delete(ctx context.Context, id uint64, transferTo *uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM managers WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM protections WHERE manager = ?`, name).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		if transferTo == nil {
			return ErrHasProtections
		}
		var newName string
		err = tx.QueryRowContext(ctx, `SELECT name FROM managers WHERE id = ?`, *transferTo).Scan(&newName)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE protections SET manager = ? WHERE manager = ?`, newName, name); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM managers WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
