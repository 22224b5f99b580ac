package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/hash"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/tokens"
	"github.com/Skotchmaster/storefront/internal/transport"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type AuthService struct {
	Repo       *repo.GormRepo
	JWTSecret  []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Events     EventPublisher
	Now        func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *AuthService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return DefaultAccessTTL
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTTL
}

// newRefresh generates a refresh token and the record that stores its hash.
func (s *AuthService) newRefresh(now time.Time) (string, *models.RefreshToken, error) {
	refresh, err := tokens.NewRefreshToken()
	if err != nil {
		return "", nil, err
	}
	return refresh, &models.RefreshToken{
		TokenHash: tokens.Sha256Hex(refresh),
		ExpiresAt: now.Add(s.refreshTTL()),
	}, nil
}

func (s *AuthService) respond(u *models.User, refresh string, now time.Time) (*transport.AuthResponse, error) {
	access, exp, err := tokens.NewAccessToken(s.JWTSecret, u.ID, u.Username, s.accessTTL(), now)
	if err != nil {
		return nil, err
	}
	return &transport.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         transport.UserFromModel(u),
	}, nil
}

// issue replaces all stored refresh tokens of u with a fresh one.
func (s *AuthService) issue(ctx context.Context, u *models.User) (*transport.AuthResponse, error) {
	now := s.now()
	refresh, rec, err := s.newRefresh(now)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.ReplaceRefreshTokens(ctx, u.ID, rec); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return s.respond(u, refresh, now)
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", req.Username)

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, ErrValidation
	}
	if len(req.Password) > hash.MaxPasswordBytes {
		l.Warn("register_error", "reason", "password longer than bcrypt accepts")
		return nil, ErrPasswordTooLong
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
	}

	now := s.now()
	refresh, rec, err := s.newRefresh(now)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.RegisterUser(ctx, user, rec); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "reason", "user already exist")
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	res, err := s.respond(user, refresh, now)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, mykafka.TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), mykafka.UserEvent{
		Type:     mykafka.UserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		At:       s.now(),
	})
	l.Info("register_success", "user_id", user.ID)
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	usernameOrEmail = strings.TrimSpace(usernameOrEmail)
	if usernameOrEmail == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.Repo.CheckCredentials(ctx, usernameOrEmail, password)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidCredentials) {
			l.Warn("login_failed", "reason", "invalid credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("check credentials: %w", err)
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, mykafka.TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), mykafka.UserEvent{
		Type:     mykafka.UserLoggedIn,
		UserID:   user.ID,
		Username: user.Username,
		At:       s.now(),
	})
	l.Info("login_success", "user_id", user.ID)
	return res, nil
}

// Refresh exchanges a stored refresh token for a new pair. The presented token
// and any other token of the user stop working.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	now := s.now()
	next, rec, err := s.newRefresh(now)
	if err != nil {
		return nil, err
	}

	userID, err := s.Repo.RotateRefreshToken(ctx, tokens.Sha256Hex(refreshToken), now, rec)
	if err != nil {
		if errors.Is(err, repo.ErrTokenNotUsable) {
			l.Warn("refresh_failed", "reason", "token not usable")
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	return s.respond(user, next, now)
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*transport.UserResponse, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	res := transport.UserFromModel(user)
	return &res, nil
}
