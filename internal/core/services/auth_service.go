package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/platform/config"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/idtoken"
)

// OwnerSubject is the JWT subject issued to the single ledger owner.
const OwnerSubject = "owner"

// authService issues API tokens to the ledger owner.
type authService struct {
	BaseService
	cfg *config.Config
}

// NewAuthService creates a new instance of authService.
func NewAuthService(cfg *config.Config) portssvc.AuthSvc {
	return &authService{cfg: cfg}
}

var _ portssvc.AuthSvc = (*authService)(nil)

func (s *authService) Login(ctx context.Context, password string) (*dto.AuthResponse, error) {
	if s.cfg.OwnerPasswordHash == "" || !utils.CheckPasswordHash(password, s.cfg.OwnerPasswordHash) {
		s.LogWarn(ctx, "Rejected login attempt")
		return nil, apperrors.ErrUnauthorized
	}

	accessToken, err := utils.GenerateJWT(OwnerSubject, s.cfg.JWTSecret, s.cfg.JWTExpiryDuration, s.cfg.JWTIssuer)
	if err != nil {
		s.LogError(ctx, err, "Failed to generate access token")
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &dto.AuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.JWTExpiryDuration.Seconds()),
	}, nil
}

const oauthStateTTL = 10 * time.Minute

// IDTokenValidator checks a Google ID token against the client id.
type IDTokenValidator func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// googleDriveConnector runs the OAuth consent flow that authorizes the Drive blob store.
type googleDriveConnector struct {
	BaseService
	cfg          *config.Config
	oauth2Config *oauth2.Config
	validate     IDTokenValidator

	mu     sync.Mutex
	states map[string]time.Time
}

// GoogleDriveConnectorOption is a functional option for the Drive connector.
type GoogleDriveConnectorOption func(*googleDriveConnector)

// WithIDTokenValidator replaces idtoken.Validate.
func WithIDTokenValidator(v IDTokenValidator) GoogleDriveConnectorOption {
	return func(c *googleDriveConnector) {
		c.validate = v
	}
}

// WithOAuthEndpoint points the connector at a different authorization server.
func WithOAuthEndpoint(endpoint oauth2.Endpoint) GoogleDriveConnectorOption {
	return func(c *googleDriveConnector) {
		c.oauth2Config.Endpoint = endpoint
	}
}

// WithConnectorClock replaces the wall clock used to expire OAuth states.
func WithConnectorClock(clock func() time.Time) GoogleDriveConnectorOption {
	return func(c *googleDriveConnector) {
		c.clock = clock
	}
}

// NewGoogleDriveConnector creates the connector. Access is limited to the
// application data folder.
func NewGoogleDriveConnector(cfg *config.Config, options ...GoogleDriveConnectorOption) portssvc.GoogleDriveConnectorSvc {
	c := &googleDriveConnector{
		cfg: cfg,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{drive.DriveAppdataScope, "openid", "email"},
			Endpoint:     google.Endpoint,
		},
		validate: idtoken.Validate,
		states:   make(map[string]time.Time),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ portssvc.GoogleDriveConnectorSvc = (*googleDriveConnector)(nil)

// AuthURL returns the consent URL together with a single-use CSRF state.
func (c *googleDriveConnector) AuthURL(ctx context.Context) (*dto.GoogleAuthURLResponse, error) {
	if c.cfg.GoogleClientID == "" {
		return nil, apperrors.NewValidationError("google", "google client is not configured")
	}
	state, err := utils.RandomHex(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state string for OAuth: %w", err)
	}

	c.mu.Lock()
	now := c.Now()
	for s, expires := range c.states {
		if now.After(expires) {
			delete(c.states, s)
		}
	}
	c.states[state] = now.Add(oauthStateTTL)
	c.mu.Unlock()

	// Offline access with forced consent so Google returns a refresh token every time.
	url := c.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return &dto.GoogleAuthURLResponse{URL: url, State: state}, nil
}

// ExchangeCode trades the authorization code for tokens, checks the ID token
// and stores the token for the Drive blob store.
func (c *googleDriveConnector) ExchangeCode(ctx context.Context, code, state string) (*dto.GoogleConnectionResponse, error) {
	if !c.consumeState(state) {
		c.LogWarn(ctx, "OAuth state missing or expired")
		return nil, apperrors.ErrUnauthorized
	}

	token, err := c.oauth2Config.Exchange(ctx, code)
	if err != nil {
		c.LogError(ctx, err, "Failed to exchange oauth code")
		return nil, fmt.Errorf("%w: failed to exchange oauth code for token: %v", apperrors.ErrUnauthorized, err)
	}

	email := ""
	if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
		payload, err := c.validate(ctx, raw, c.cfg.GoogleClientID)
		if err != nil {
			c.LogError(ctx, err, "Google ID token validation failed")
			return nil, fmt.Errorf("%w: google ID token validation failed: %v", apperrors.ErrUnauthorized, err)
		}
		email, _ = payload.Claims["email"].(string)
	}

	if err := utils.SaveOAuthToken(c.cfg.GoogleTokenFile, token); err != nil {
		c.LogError(ctx, err, "Failed to persist google token")
		return nil, err
	}
	c.LogInfo(ctx, "Google Drive connected", slog.String("email", email))
	return &dto.GoogleConnectionResponse{Connected: true, Email: email}, nil
}

func (c *googleDriveConnector) consumeState(state string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires, ok := c.states[state]
	delete(c.states, state)
	return ok && !c.Now().After(expires)
}

// TokenSource returns a refreshing source backed by the stored token.
func (c *googleDriveConnector) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := utils.LoadOAuthToken(c.cfg.GoogleTokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: google drive is not connected", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	base := c.oauth2Config.TokenSource(context.WithoutCancel(ctx), token)
	return utils.NewPersistingTokenSource(c.cfg.GoogleTokenFile, base), nil
}
