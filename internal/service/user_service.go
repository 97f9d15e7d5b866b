package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/digkill/visionhub/internal/apperror"
	"github.com/digkill/visionhub/internal/metrics"
	"github.com/digkill/visionhub/internal/models"
	"github.com/digkill/visionhub/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

type UserService struct {
	log           *slog.Logger
	users         UserStore
	signupCredits int
}

func NewUserService(log *slog.Logger, users UserStore, signupCredits int) *UserService {
	return &UserService{log: log, users: users, signupCredits: signupCredits}
}

// EnsureProfile creates the profile with the signup grant on first sign-in.
// Later calls only refresh the identity fields.
func (s *UserService) EnsureProfile(ctx context.Context, uid, email string, emailVerified bool) (*models.UserProfile, error) {
	if uid == "" {
		return nil, apperror.ValidationFailed("uid", "uid is required")
	}
	user, created, err := s.users.Ensure(ctx, uid, email, emailVerified, s.signupCredits)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	if created {
		metrics.CreditsGranted.WithLabelValues("signup").Add(float64(s.signupCredits))
		if s.log != nil {
			s.log.Info("user profile created", "user", uid, "credits", s.signupCredits)
		}
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, uid string) (*models.UserProfile, error) {
	user, err := s.users.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("user", uid)
	}
	return user, nil
}

// NormalizeUsername trims and lower-cases name and checks the allowed alphabet.
func NormalizeUsername(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !usernamePattern.MatchString(name) {
		return "", apperror.ValidationFailed("username", "username must be 3-20 characters of a-z, 0-9 or _")
	}
	return name, nil
}

// SetUsername claims name for uid. A username can be set only once and is unique across users.
func (s *UserService) SetUsername(ctx context.Context, uid, name string) (*models.UserProfile, error) {
	normalized, err := NormalizeUsername(name)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetUsername(ctx, uid, normalized); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NotFound("user", uid)
		}
		return nil, err
	}
	return s.Profile(ctx, uid)
}

// CheckUsernameAvailability is advisory; SetUsername is the authority.
func (s *UserService) CheckUsernameAvailability(ctx context.Context, name string) (bool, error) {
	normalized, err := NormalizeUsername(name)
	if err != nil {
		return false, err
	}
	exists, err := s.users.UsernameExists(ctx, normalized)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *UserService) SetShowAds(ctx context.Context, uid string, show bool) (*models.UserProfile, error) {
	if _, err := s.Profile(ctx, uid); err != nil {
		return nil, err
	}
	if err := s.users.SetShowAds(ctx, uid, show); err != nil {
		return nil, err
	}
	return s.Profile(ctx, uid)
}
