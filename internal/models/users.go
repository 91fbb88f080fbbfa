package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"community/internal/db"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser validates the signup input, hashes the password and stores the
// account.
func CreateUser(ctx context.Context, d *db.DB, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	v := &ValidationError{}
	checkUsername(v, username)
	checkEmail(v, email)
	checkPassword(v, password)
	if err := v.orNil(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = d.ExecContext(ctx, d.Rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, duplicateUserError(err)
	}
	return u, nil
}

// Authenticate returns the user owning email when password matches its hash.
func Authenticate(ctx context.Context, d *db.DB, email, password string) (*User, error) {
	row := d.QueryRowContext(ctx, d.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), strings.TrimSpace(email))
	u, err := scanUser(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func GetUser(ctx context.Context, d *db.DB, id string) (*User, error) {
	row := d.QueryRowContext(ctx, d.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return scanUser(row)
}

// UpdateUser applies patch to the account id. Only the account owner may do
// so.
func UpdateUser(ctx context.Context, d *db.DB, id, callerID string, patch UserPatch) (*User, error) {
	if id != callerID {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	if patch.Username != nil {
		*patch.Username = strings.TrimSpace(*patch.Username)
		checkUsername(v, *patch.Username)
	}
	if patch.Email != nil {
		*patch.Email = strings.TrimSpace(*patch.Email)
		checkEmail(v, *patch.Email)
	}
	if patch.Password != nil {
		checkPassword(v, *patch.Password)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	var updated *User
	err := d.InTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, d.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`+d.ForUpdate()), id))
		if err != nil {
			return err
		}
		if patch.Username != nil {
			u.Username = *patch.Username
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			u.PasswordHash = string(hash)
		}
		u.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, d.Rebind(`UPDATE users SET username = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?`),
			u.Username, u.Email, u.PasswordHash, u.UpdatedAt, u.ID)
		if err != nil {
			return duplicateUserError(err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EnsureUser provisions an account for an identity verified by an external
// provider. The account has no password and cannot log in locally. If the
// preferred username is taken, a suffix derived from the id is appended.
func EnsureUser(ctx context.Context, d *db.DB, id, name, email string) (*User, error) {
	u, err := GetUser(ctx, d, id)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return u, err
	}
	username := externalUsername(id, name, email)
	if email == "" {
		email = id + "@users.invalid"
	}
	now := time.Now().UTC()
	insert := d.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, '', ?, ?)`)
	for attempt := 0; attempt < 3; attempt++ {
		_, err = d.ExecContext(ctx, insert, id, username, email, now, now)
		if err == nil {
			return GetUser(ctx, d, id)
		}
		constraint, ok := uniqueViolation(err)
		if !ok {
			return nil, err
		}
		switch {
		case strings.Contains(constraint, "username"):
			username = truncate(username, 41) + "-" + truncate(id, 8)
		case strings.Contains(constraint, "email"):
			email = id + "@users.invalid"
		default:
			// a concurrent request provisioned the same id
			return GetUser(ctx, d, id)
		}
	}
	return nil, fmt.Errorf("provision user %s: %w", id, ErrConflict)
}

func externalUsername(id, name, email string) string {
	username := strings.TrimSpace(name)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if len([]rune(username)) < 3 {
		username = "user-" + truncate(id, 8)
	}
	return truncate(username, 50)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
