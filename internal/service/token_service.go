package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/iliyamo/mealmatch/internal/config"
	"github.com/iliyamo/mealmatch/internal/tokenchain"
	"github.com/iliyamo/mealmatch/internal/utils"
)

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService issues and verifies access and refresh tokens.  Refresh
// tokens are single use: each one names a node in the chain tracker and
// redeeming it links the next node.  Redeeming the same token twice purges
// the whole lineage.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	seedChain  bool
	chain      *tokenchain.Tracker
	now        func() time.Time
	log        *zap.Logger
}

// NewTokenService wires the service to the process-wide chain tracker.
func NewTokenService(cfg config.Config, chain *tokenchain.Tracker, log *zap.Logger) *TokenService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		seedChain:  cfg.SeedRefreshChain,
		chain:      chain,
		now:        time.Now,
		log:        log.Named("tokens"),
	}
}

// WithClock replaces the clock used for issuing and verifying tokens.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// IssueLoginTokens mints the token pair handed out on login.  When chain
// seeding is enabled the refresh token carries a fresh chain root as its jti;
// otherwise it carries none and cannot be redeemed by Refresh.
func (s *TokenService) IssueLoginTokens(userID uint64) (TokenPair, error) {
	jti := ""
	if s.seedChain {
		root, err := s.chain.GenerateAndLink("")
		if err != nil {
			return TokenPair{}, fmt.Errorf("seed refresh chain: %w", err)
		}
		jti = root
	}
	return s.issue(userID, jti)
}

// Refresh redeems a refresh token and returns the next pair in its chain.
func (s *TokenService) Refresh(refreshToken string) (TokenPair, error) {
	claims, err := s.decode(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.ID == "" {
		return TokenPair{}, ErrDecodeToken
	}
	if !claims.IsRefresh() {
		return TokenPair{}, ErrDecodeToken
	}

	jti, err := s.chain.GenerateAndLink(claims.ID)
	switch {
	case errors.Is(err, tokenchain.ErrChainConflict):
		s.log.Warn("refresh token replayed, lineage purged",
			zap.Uint64("user_id", claims.UserID), zap.String("jti", claims.ID))
		return TokenPair{}, ErrUnauthorized
	case errors.Is(err, tokenchain.ErrPreviousNotFound):
		return TokenPair{}, ErrUnauthorized
	case err != nil:
		s.log.Error("refresh chain failure", zap.String("jti", claims.ID), zap.Error(err))
		return TokenPair{}, ErrDecodeToken
	}
	return s.issue(claims.UserID, jti)
}

// Verify checks signature and expiry only.  The chain tracker is not
// consulted, so a consumed refresh token still verifies until it expires.
func (s *TokenService) Verify(token string) error {
	_, err := s.decode(token)
	return err
}

// AccessUserID decodes an access token and returns its subject user id.
// Refresh tokens are rejected so they cannot be used as credentials.
func (s *TokenService) AccessUserID(token string) (uint64, error) {
	claims, err := s.decode(token)
	if err != nil {
		return 0, err
	}
	if claims.IsRefresh() || claims.UserID == 0 {
		return 0, ErrDecodeToken
	}
	return claims.UserID, nil
}

func (s *TokenService) issue(userID uint64, jti string) (TokenPair, error) {
	now := s.now()
	access, _, err := utils.SignToken(s.secret, utils.Claims{UserID: userID}, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshClaims := utils.Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{Subject: utils.RefreshSubject, ID: jti},
	}
	refresh, _, err := utils.SignToken(s.secret, refreshClaims, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) decode(token string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(s.secret, token, s.now)
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrDecodeToken
	}
	return claims, nil
}
