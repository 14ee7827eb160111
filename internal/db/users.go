package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

const userColumns = `id, email, name, role, created_at`

func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	if err := db.createUser(ctx, db.DB, u); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) createUser(ctx context.Context, exec executor, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = models.NormalizeEmail(u.Email)
	if u.Name == "" {
		u.Name = models.DefaultName(u.Email)
	}
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = db.now()
	}
	u.CreatedAt = utc(u.CreatedAt)
	_, err := exec.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.Role, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// EnsureUser returns the user with the given email, creating it with role
// when it does not exist yet. created reports whether this call inserted it.
func (db *DB) EnsureUser(ctx context.Context, email string, role models.Role) (u *models.User, created bool, err error) {
	email = models.NormalizeEmail(email)
	existing, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	u = &models.User{Email: email, Role: role}
	if err := db.CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent first request.
		if existing, getErr := db.GetUserByEmail(ctx, email); getErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return u, true, nil
}

func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, models.NormalizeEmail(email))
}

func (db *DB) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	u := &models.User{}
	err := db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func (db *DB) SetUserRole(ctx context.Context, id string, role models.Role) error {
	res, err := db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) DeleteUser(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	db.triggerChange(ctx)
	return nil
}
