package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user exists")
	ErrInvalidUser        = errors.New("invalid user")
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserStore struct {
	db *sql.DB
}

func NewUserStore(dbh *sql.DB) *UserStore { return &UserStore{db: dbh} }

func (s *UserStore) Create(ctx context.Context, username, password, role string) (User, error) {
	if username == "" || len(password) < 8 {
		return User{}, errors.Wrap(ErrInvalidUser, "username and an 8+ character password are required")
	}
	if !rbac.KnownRole(role) {
		return User{}, errors.Wrapf(ErrInvalidUser, "unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Username: username, Role: role}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id,username,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Username, u.Role, string(hash), time.Now().UnixMilli())
	if db.IsUniqueViolation(err) {
		return User{}, errors.Wrapf(ErrUserExists, "username %q", username)
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id,username,role,password_hash FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Role returns the stored role of the user with the given id. Tokens carry
// the user id as subject, so a username never matches here.
func (s *UserStore) Role(ctx context.Context, id string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&role)
	return role, err
}
