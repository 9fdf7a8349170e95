package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost trades hashing time against brute-force resistance.
const bcryptCost = 12

// UserStorage defines the persistence operations the user service relies on.
// Lookups return nil when no matching user exists.
type UserStorage interface {
	GetUser(ctx context.Context, id string) (*UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	InsertUser(ctx context.Context, u UserRecord) error
}

// UserService handles registration, credential checks and profile lookups.
type UserService struct {
	st UserStorage
}

func NewUserService(st UserStorage) *UserService {
	return &UserService{st: st}
}

// Register creates a new user with a bcrypt-hashed password. Emails are
// normalized to lower case and must be unique.
func (s *UserService) Register(ctx context.Context, name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return User{}, ErrMissingFields
	}
	existing, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	rec := UserRecord{
		User:         User{ID: uuid.NewString(), Name: name, Email: email},
		PasswordHash: string(hash),
	}
	if err := s.st.InsertUser(ctx, rec); err != nil {
		return User{}, err
	}
	log.WithField("user", rec.ID).Info("user registered")
	return rec.User, nil
}

// Authenticate verifies the credentials and returns the matching user.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (User, error) {
	rec, err := s.st.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return User{}, err
	}
	if rec == nil {
		return User{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return rec.User, nil
}

// Profile returns the stored profile for id.
func (s *UserService) Profile(ctx context.Context, id string) (User, error) {
	rec, err := s.st.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if rec == nil {
		return User{}, ErrUserNotFound
	}
	return rec.User, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
