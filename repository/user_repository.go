package repository

import (
	"database/sql"
	"fmt"
	"time"

	"audiohub/db"
	"audiohub/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(u *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserByUsername(username string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	GetAllUsers() ([]*model.User, error)
	UpdateUser(u *model.User) error
	DeleteUser(id int64) error
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository() UserRepository {
	return &mysqlUserRepository{db: db.DB}
}

const userColumns = `id, username, email, first_name, last_name, bio, phone, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.Bio, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(u *model.User) (int64, error) {
	query := `INSERT INTO users (username, email, first_name, last_name, bio, phone, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare create user statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	res, err := stmt.Exec(u.Username, u.Email, u.FirstName, u.LastName, u.Bio, u.Phone, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute create user statement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for user: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

// GetUserByID retrieves a user by their ID.
func (r *mysqlUserRepository) GetUserByID(id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user row for ID %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by their username.
func (r *mysqlUserRepository) GetUserByUsername(username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	u, err := scanUser(r.db.QueryRow(query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user row for username %s: %w", username, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *mysqlUserRepository) GetUserByEmail(email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	u, err := scanUser(r.db.QueryRow(query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user row for email %s: %w", email, err)
	}
	return u, nil
}

// GetAllUsers retrieves all users, newest account first.
func (r *mysqlUserRepository) GetAllUsers() ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during user rows iteration: %w", err)
	}

	return users, nil
}

// UpdateUser persists profile fields of an existing user.
func (r *mysqlUserRepository) UpdateUser(u *model.User) error {
	query := `UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, bio = ?, phone = ?, updated_at = ? WHERE id = ?`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare update user statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(u.Username, u.Email, u.FirstName, u.LastName, u.Bio, u.Phone, now, u.ID)
	if err != nil {
		return fmt.Errorf("failed to execute update user statement: %w", err)
	}
	u.UpdatedAt = now
	return nil
}

// DeleteUser removes a user record. Audio records are removed by the caller
// beforehand; the cascade is an explicit application-level fan-out.
func (r *mysqlUserRepository) DeleteUser(id int64) error {
	res, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to execute delete user for ID %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for delete user: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
