// Package services contains server-side business logic: the encrypted
// document pipeline, the catalog around it, authentication and auditing.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/config"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	AccessToken string
	SessionID   string
	CSRFToken   string
	User        *models.User
}

// UserService authenticates users, mints access tokens and manages the
// login session that CSRF tokens are bound to.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	sessions                    auth.SessionStore
	audit                       *AuditService
	log                         logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration

	// dummyHash is compared against when the user does not exist so that
	// unknown and known usernames take the same time.
	dummyHash []byte
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, sessions auth.SessionStore, audit *AuditService, log logging.Logger, cfg *config.Config) *UserService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	return &UserService{
		db:                          db,
		repomanager:                 m,
		sessions:                    sessions,
		audit:                       audit,
		log:                         log.With("module", "users"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		dummyHash:                   dummy,
	}
}

// Login verifies credentials and opens a new session. Bad credentials of
// any kind yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password, ipAddress, userAgent string) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	id := auth.Identity{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: uuid.NewString(),
	}
	token, err := auth.GenerateToken(id, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		s.log.Error(ctx, "token generation failed", "error", err)
		return nil, common.ErrorInternal
	}
	csrf, err := s.sessions.CSRFToken(ctx, id.SessionID)
	if err != nil {
		s.log.Error(ctx, "csrf token issue failed", "error", err)
		return nil, common.ErrorInternal
	}

	rc := &auth.RequestContext{Identity: id, IPAddress: ipAddress, UserAgent: userAgent}
	s.audit.Record(ctx, rc, ActionLogin, "user logged in", EntityUser, user.ID)

	return &LoginResult{AccessToken: token, SessionID: id.SessionID, CSRFToken: csrf, User: user}, nil
}

// Logout drops the caller's session; its CSRF token stops validating.
func (s *UserService) Logout(ctx context.Context, rc *auth.RequestContext) error {
	if rc == nil || rc.SessionID == "" {
		return common.ErrorUnauthorized
	}
	if err := s.sessions.Drop(ctx, rc.SessionID); err != nil {
		return err
	}
	s.audit.Record(ctx, rc, ActionLogout, "user logged out", EntityUser, rc.UserID)
	return nil
}

// CreateUser stores a new user with a bcrypt password hash.
func (s *UserService) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}
	switch role {
	case common.RoleSuperAdmin, common.RoleAdmin, common.RoleUser:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	return s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
}

// EnsureAdmin creates a super admin with the given credentials unless a
// user with that name already exists.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	u, err := s.CreateUser(ctx, username, password, common.RoleSuperAdmin)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil
		}
		return err
	}
	s.log.Info(ctx, "seeded admin user", "username", u.Username)
	return nil
}
