package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/mealmatch/internal/model"
	"github.com/iliyamo/mealmatch/internal/repository"
	"github.com/iliyamo/mealmatch/internal/utils"
)

// UserFinder is the part of the user repository login needs.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
}

// AuthService authenticates users by username and password.
type AuthService struct {
	Users  UserFinder
	Tokens *TokenService
}

func NewAuthService(users UserFinder, tokens *TokenService) *AuthService {
	return &AuthService{Users: users, Tokens: tokens}
}

// Login verifies the credentials and returns a fresh token pair.
func (a *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	u, err := a.Users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrUserNotFound
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, ErrIncorrectPassword
	}
	return a.Tokens.IssueLoginTokens(u.ID)
}
