package store

import (
	"context"
	"strings"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

type UserFilter struct {
	Role  model.Role
	Query string
}

const userColumns = `id, email, name, role, password_hash, created_at`

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.PasswordHash, &user.CreatedAt)
	user.CreatedAt = user.CreatedAt.UTC()
	return user, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUser(user model.User) error {
	if user.Role != model.RoleAdmin && user.Role != model.RoleCustomer {
		return invalid("role %q", user.Role)
	}
	if user.PasswordHash == "" {
		return invalid("user without password")
	}
	return nil
}

// CreateUser stores a user whose PasswordHash is already computed.
func (store *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	user.Email = normalizeEmail(user.Email)
	if err := validateUser(user); err != nil {
		return model.User{}, err
	}
	user.CreatedAt = store.timestamp()

	err := store.db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, role, password_hash, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.Email, user.Name, user.Role, user.PasswordHash, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return model.User{}, classify(err, "create user")
	}
	return user, nil
}

func (store *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, classify(err, "get user")
	}
	return user, nil
}

func (store *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email))
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, classify(err, "get user")
	}
	return user, nil
}

func (store *Store) ListUsers(ctx context.Context, filter UserFilter, page Page) ([]model.User, error) {
	var where whereClause
	if filter.Role != "" {
		where.add("role = ?", filter.Role)
	}
	if strings.TrimSpace(filter.Query) != "" {
		pattern := likePattern(filter.Query)
		where.add("(LOWER(email) LIKE ? OR LOWER(name) LIKE ?)", pattern, pattern)
	}
	query := `SELECT ` + userColumns + ` FROM users` + where.sql() + ` ORDER BY email, id` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list users")
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, "list users")
		}
		users = append(users, user)
	}
	return users, classify(rows.Err(), "list users")
}

// UpdateUser keeps the stored password hash when user.PasswordHash is empty.
func (store *Store) UpdateUser(ctx context.Context, user model.User) (model.User, error) {
	current, err := store.GetUser(ctx, user.ID)
	if err != nil {
		return model.User{}, err
	}
	if user.PasswordHash == "" {
		user.PasswordHash = current.PasswordHash
	}
	user.Email = normalizeEmail(user.Email)
	if err := validateUser(user); err != nil {
		return model.User{}, err
	}

	err = execAffecting(ctx, store.db, "update user",
		`UPDATE users SET email = $1, name = $2, role = $3, password_hash = $4 WHERE id = $5`,
		user.Email, user.Name, user.Role, user.PasswordHash, user.ID,
	)
	if err != nil {
		return model.User{}, err
	}
	return store.GetUser(ctx, user.ID)
}

func (store *Store) DeleteUser(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (store *Store) CreateSession(ctx context.Context, tokenHash string, userID int64, ttl time.Duration) (time.Time, error) {
	now := store.timestamp()
	expiresAt := now.Add(ttl)
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		tokenHash, userID, expiresAt, now,
	)
	if err != nil {
		return time.Time{}, classify(err, "create session")
	}
	return expiresAt, nil
}

// SessionUser returns the user owning an unexpired session.
func (store *Store) SessionUser(ctx context.Context, tokenHash string) (model.User, error) {
	row := store.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, u.role, u.password_hash, u.created_at
		   FROM sessions s
		   JOIN users u ON u.id = s.user_id
		  WHERE s.token_hash = $1 AND s.expires_at > $2`,
		tokenHash, store.timestamp(),
	)
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, classify(err, "get session")
	}
	return user, nil
}

func (store *Store) DeleteSession(ctx context.Context, tokenHash string) error {
	return execAffecting(ctx, store.db, "delete session", `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
}

func (store *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	result, err := store.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, store.timestamp())
	if err != nil {
		return 0, classify(err, "purge sessions")
	}
	return result.RowsAffected()
}
