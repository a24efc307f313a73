// Package auth is the authentication collaborator: credential verification
// against the document store and session token issue/restore. Permission
// enforcement stays with the backend's access rules; the token only carries
// the role so consumers can pick an application mode.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
	"github.com/ArtyomNalbandian/Dolcetto/internal/session"
)

const (
	credentialsCollection = "credentials"
	usersCollection       = "users"
)

// credentials is the stored login record, keyed by email.
type credentials struct {
	Email        string `json:"email" bson:"email"`
	PasswordHash string `json:"passwordHash" bson:"passwordHash"`
	UserID       string `json:"userId" bson:"userId"`
}

// Config for token issuing.
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Service implements login, registration and session restore. When a
// session is attached (the embedded app shell), every successful
// authentication installs the identity there; the multi-user HTTP surface
// runs without one and consumes the returned token instead.
type Service struct {
	store   docstore.Store
	session *session.Session // optional
	cfg     Config
	log     zerolog.Logger
}

func NewService(store docstore.Store, sess *session.Session, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		session: sess,
		cfg:     cfg,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Login verifies the credentials, loads (or creates) the user document and
// installs the identity into the session.
func (s *Service) Login(ctx context.Context, email, password string) (domain.UserData, string, error) {
	var cred credentials
	err := s.store.Get(ctx, credentialsCollection, email, &cred)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.UserData{}, "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.UserData{}, "", fmt.Errorf("load credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return domain.UserData{}, "", domain.ErrInvalidCredentials
	}
	return s.establish(ctx, cred.UserID, email)
}

// Register creates credentials and the user document, then signs the new
// user in. The role is assigned here and never changed by this core.
func (s *Service) Register(ctx context.Context, email, password string) (domain.UserData, string, error) {
	var existing credentials
	err := s.store.Get(ctx, credentialsCollection, email, &existing)
	if err == nil {
		return domain.UserData{}, "", domain.ErrEmailTaken
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return domain.UserData{}, "", fmt.Errorf("check credentials: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserData{}, "", fmt.Errorf("hash password: %w", err)
	}
	cred := credentials{
		Email:        email,
		PasswordHash: string(hash),
		UserID:       uuid.New().String(),
	}
	if err := s.store.Set(ctx, credentialsCollection, email, cred); err != nil {
		return domain.UserData{}, "", fmt.Errorf("store credentials: %w", err)
	}
	return s.establish(ctx, cred.UserID, email)
}

// Restore handles the "already authenticated" path: a still-valid session
// token re-establishes the identity without credentials.
func (s *Service) Restore(ctx context.Context, token string) (domain.UserData, error) {
	claims, err := ParseToken(s.cfg.Secret, token)
	if err != nil {
		return domain.UserData{}, domain.ErrNotAuthenticated
	}
	user, _, err := s.establish(ctx, claims.UserID, claims.Email)
	return user, err
}

// Logout clears the attached session.
func (s *Service) Logout() {
	if s.session != nil {
		s.session.Clear()
	}
}

// establish loads the user document, creating it with the default role when
// this is the first authentication, then issues a token and installs the
// identity into the attached session, if any.
func (s *Service) establish(ctx context.Context, userID, email string) (domain.UserData, string, error) {
	var user domain.UserData
	err := s.store.Get(ctx, usersCollection, userID, &user)
	if errors.Is(err, docstore.ErrNotFound) {
		user = domain.UserData{
			UserID: userID,
			Email:  email,
			Role:   domain.RoleUser,
			Cart:   domain.Cart{},
		}
		if err := s.store.Set(ctx, usersCollection, userID, user); err != nil {
			return domain.UserData{}, "", fmt.Errorf("create user: %w", err)
		}
		s.log.Info().Str("userId", userID).Msg("created user document on first authentication")
	} else if err != nil {
		return domain.UserData{}, "", fmt.Errorf("fetch user: %w", err)
	}

	token, err := generateToken(s.cfg.Secret, s.cfg.Issuer, s.cfg.TokenTTL, user)
	if err != nil {
		return domain.UserData{}, "", fmt.Errorf("issue token: %w", err)
	}
	if s.session != nil {
		s.session.Set(user, token)
	}
	return user, token, nil
}
