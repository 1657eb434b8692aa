package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aquafloor/projectguard/internal/model"
)

// UserRepo provides access to the users table.  Besides account CRUD
// it answers the directory questions the approval workflow needs:
// which manager owns a name, who assists them, which admins share
// their group and who the superadmins are.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, tg_id, tg_username, first_name, role, manager_id, group_tag, region, password_hash, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	var username, firstName, role, groupTag, region, passwordHash sql.NullString
	var managerID sql.NullInt64
	err := row.Scan(&u.ID, &u.TelegramID, &username, &firstName, &role,
		&managerID, &groupTag, &region, &passwordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.Role = role.String
	u.GroupTag = groupTag.String
	u.Region = region.String
	u.PasswordHash = passwordHash.String
	if managerID.Valid {
		id := uint64(managerID.Int64)
		u.ManagerID = &id
	}
	return &u, nil
}

// GetByID loads one user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByTelegramID loads one user by their Telegram id.
func (r *UserRepo) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE tg_id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, tgID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// GetByUsername loads one user by Telegram username, for the password
// login path.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE tg_username = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, username))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// UpsertTelegram registers a Telegram account on first login and
// refreshes its username/display name on later ones.  The role is
// only set on insert; an existing row keeps whatever role an admin
// assigned.  The stored row is returned.
func (r *UserRepo) UpsertTelegram(ctx context.Context, tgID int64, username, firstName, role string) (*model.User, error) {
	const q = `INSERT INTO users (tg_id, tg_username, first_name, role, created_at)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE tg_username = VALUES(tg_username),
	                                   first_name = VALUES(first_name)`
	if _, err := r.db.ExecContext(ctx, q, tgID, username, firstName, role, time.Now().UTC()); err != nil {
		return nil, err
	}
	return r.GetByTelegramID(ctx, tgID)
}

// Create inserts a user row from the admin panel.  ErrDuplicateUser is
// returned when the Telegram id is already registered.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (tg_id, tg_username, first_name, role, manager_id, group_tag, region, password_hash, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, u.TelegramID, u.Username, u.FirstName, u.Role,
		nullUint(u.ManagerID), u.GroupTag, u.Region, u.PasswordHash, time.Now().UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateUser
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// List returns all users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users ORDER BY id`
	return r.queryUsers(ctx, q)
}

// UserPatch carries the admin-editable fields; nil fields are left
// unchanged.
type UserPatch struct {
	Role      *string
	GroupTag  *string
	ManagerID *uint64
	Region    *string
}

// Update applies a patch to one user.  At least one field must be set.
func (r *UserRepo) Update(ctx context.Context, id uint64, patch UserPatch) error {
	sets := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	if patch.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *patch.Role)
	}
	if patch.GroupTag != nil {
		sets = append(sets, "group_tag = ?")
		args = append(args, *patch.GroupTag)
	}
	if patch.ManagerID != nil {
		sets = append(sets, "manager_id = ?")
		args = append(args, *patch.ManagerID)
	}
	if patch.Region != nil {
		sets = append(sets, "region = ?")
		args = append(args, *patch.Region)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return err
}

// Delete removes one user row.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// ManagerByName resolves the user account of the manager with the
// given display name.  ErrNotFound means the manager has no registered
// account (they may still exist in the roster).
func (r *UserRepo) ManagerByName(ctx context.Context, name string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role = 'manager' AND first_name = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// Assistants returns every assistant linked to the given manager
// account.
func (r *UserRepo) Assistants(ctx context.Context, managerUserID uint64) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role = 'assistant' AND manager_id = ? ORDER BY id`
	return r.queryUsers(ctx, q, managerUserID)
}

// AdminsByGroup returns every admin sharing the given group tag.
func (r *UserRepo) AdminsByGroup(ctx context.Context, groupTag string) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role = 'admin' AND group_tag = ? ORDER BY id`
	return r.queryUsers(ctx, q, groupTag)
}

// Superadmins returns every superadmin; they receive every pending
// notice unconditionally.
func (r *UserRepo) Superadmins(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE role = 'superadmin' ORDER BY id`
	return r.queryUsers(ctx, q)
}

func (r *UserRepo) queryUsers(ctx context.Context, q string, args ...interface{}) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
