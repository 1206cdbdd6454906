package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/auth"
)

const doctorSpecialization = "Oral Oncology"

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	UpdateDisplayName(ctx context.Context, username, displayName string) error
}

// Session is a signed cookie value and the identity it carries.
type Session struct {
	Principal domain.Principal
	Token     string
	ExpiresAt time.Time
	// Created is set when the login registered a new account.
	Created bool
}

type AuthService struct {
	users    UserRepository
	sessions *auth.SessionManager
	audit    *AuditService
	log      *zap.Logger
	cost     int
}

func NewAuthService(users UserRepository, sessions *auth.SessionManager, audit *AuditService, log *zap.Logger) *AuthService {
	return &AuthService{users: users, sessions: sessions, audit: audit, log: log, cost: bcrypt.DefaultCost}
}

// Login authenticates an existing user or registers a new one with the
// requested role. An unknown role registers a patient. The role of an
// existing account never changes.
func (s *AuthService) Login(ctx context.Context, username, password string, role domain.Role, caller Caller) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &MissingInputError{Field: "username"}
	}
	if password == "" {
		return nil, &MissingInputError{Field: "password"}
	}

	created := false
	user, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = s.register(ctx, username, password, role)
		if errors.Is(err, domain.ErrUsernameTaken) {
			// Lost a registration race; authenticate against the winner.
			user, err = s.users.GetByUsername(ctx, username)
			if err != nil {
				return nil, fmt.Errorf("loading user: %w", err)
			}
			if err := s.checkPassword(user, password, caller); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		} else {
			created = true
		}
	case err != nil:
		return nil, fmt.Errorf("loading user: %w", err)
	default:
		if err := s.checkPassword(user, password, caller); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateLastLogin(ctx, username, time.Now().UTC()); err != nil {
		s.log.Warn("failed to record last login", zap.String("username", username), zap.Error(err))
	}

	sess, err := s.issue(user.Principal())
	if err != nil {
		return nil, err
	}
	sess.Created = created

	caller.Principal = sess.Principal
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionLogin,
		ResourceType: "user",
		ResourceID:   username,
	})

	s.log.Info("user logged in",
		zap.String("username", username),
		zap.String("role", string(user.Role)),
		zap.Bool("registered", created),
		zap.String("ip", caller.IP),
	)

	return sess, nil
}

func (s *AuthService) Logout(ctx context.Context, caller Caller) {
	if caller.IsAnonymous() {
		return
	}
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionLogout,
		ResourceType: "user",
		ResourceID:   caller.Username,
	})
}

// UpdateDisplayName renames a doctor and returns a session carrying the new
// name.
func (s *AuthService) UpdateDisplayName(ctx context.Context, caller Caller, name string) (*Session, error) {
	if err := caller.requireRole(domain.RoleDoctor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &MissingInputError{Field: "doctor_name"}
	}

	if err := s.users.UpdateDisplayName(ctx, caller.Username, name); err != nil {
		return nil, fmt.Errorf("updating display name: %w", err)
	}

	p := caller.Principal
	p.DisplayName = name

	s.audit.LogAsync(ctx, AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: "user",
		ResourceID:   caller.Username,
		Changes:      fmt.Sprintf(`{"display_name":%q}`, name),
	})

	return s.issue(p)
}

func (s *AuthService) register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	if !role.IsValid() {
		role = domain.RolePatient
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		DisplayName:  username,
	}
	if role == domain.RoleDoctor {
		u.DisplayName = "Dr. " + titleCase(username)
		u.Specialization = doctorSpecialization
		u.Email = username + "@example.com"
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) checkPassword(u *domain.User, password string, caller Caller) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Warn("failed login attempt",
			zap.String("username", u.Username),
			zap.String("ip", caller.IP),
		)
		return ErrInvalidCredentials
	}
	return nil
}

func (s *AuthService) issue(p domain.Principal) (*Session, error) {
	token, expiresAt, err := s.sessions.Issue(p)
	if err != nil {
		s.log.Error("failed to issue session", zap.Error(err))
		return nil, fmt.Errorf("issuing session: %w", err)
	}
	return &Session{Principal: p, Token: token, ExpiresAt: expiresAt}, nil
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "john_doe" becomes "John_Doe".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToTitle(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
