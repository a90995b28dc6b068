package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/iliyamo/mealmatch/internal/model"
	"github.com/iliyamo/mealmatch/internal/repository"
)

// AdmissionContext is what a permission predicate sees about a connection
// attempt.
type AdmissionContext struct {
	PoolID      string
	AccessToken string
	Params      map[string]string
}

// Permission decides whether a connection attempt may proceed.  A denial is
// reported as a *Status; any other error is treated as an internal failure.
type Permission interface {
	Check(ctx context.Context, ac *AdmissionContext) error
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context, ac *AdmissionContext) error

func (f PermissionFunc) Check(ctx context.Context, ac *AdmissionContext) error { return f(ctx, ac) }

// Evaluate checks sets as a disjunction of conjunctions.  The first
// conjunction whose predicates all pass admits the connection; predicates
// inside a conjunction stop at the first failure.  No sets at all means
// allow.  On denial the error of the first failing conjunction is returned.
// Predicates only read, so skipping the rest of a conjunction after a
// failure gives the same decision and the same error as checking them all.
func Evaluate(ctx context.Context, sets [][]Permission, ac *AdmissionContext) error {
	if len(sets) == 0 {
		return nil
	}
	var first error
	for _, conj := range sets {
		err := checkAll(ctx, conj, ac)
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func checkAll(ctx context.Context, conj []Permission, ac *AdmissionContext) error {
	for _, p := range conj {
		if err := p.Check(ctx, ac); err != nil {
			return err
		}
	}
	return nil
}

// AllowAll admits every connection.
func AllowAll() Permission {
	return PermissionFunc(func(context.Context, *AdmissionContext) error { return nil })
}

// TokenDecoder resolves an access token to its user id.
type TokenDecoder interface {
	AccessUserID(token string) (uint64, error)
}

// SessionStore is the read side of the swipe session repository.
// SessionGroup may be served from a cache since a session never changes
// group; GetSession must reflect the current status.
type SessionStore interface {
	GetSession(ctx context.Context, id uint64) (model.SwipeSession, error)
	SessionGroup(ctx context.Context, id uint64) (uint64, error)
	IsMember(ctx context.Context, groupID, userID uint64) (bool, error)
}

// IsAuthenticated requires a valid access token.
func IsAuthenticated(tokens TokenDecoder) Permission {
	return PermissionFunc(func(_ context.Context, ac *AdmissionContext) error {
		_, err := userID(tokens, ac)
		return err
	})
}

// IsSessionMember requires a valid access token whose user belongs to the
// group owning the session named by the pool id.
func IsSessionMember(tokens TokenDecoder, sessions SessionStore) Permission {
	return PermissionFunc(func(ctx context.Context, ac *AdmissionContext) error {
		uid, err := userID(tokens, ac)
		if err != nil {
			return err
		}
		id, err := sessionID(ac.PoolID)
		if err != nil {
			return err
		}
		group, err := sessions.SessionGroup(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidID
		}
		if err != nil {
			return err
		}
		ok, err := sessions.IsMember(ctx, group, uid)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAccessDenied
		}
		return nil
	})
}

// IsActiveSession requires the session named by the pool id to be in progress.
func IsActiveSession(sessions SessionStore) Permission {
	return PermissionFunc(func(ctx context.Context, ac *AdmissionContext) error {
		s, err := loadSession(ctx, sessions, ac.PoolID)
		if err != nil {
			return err
		}
		if !s.IsActive() {
			return ErrInactiveSession
		}
		return nil
	})
}

func userID(tokens TokenDecoder, ac *AdmissionContext) (uint64, error) {
	if ac.AccessToken == "" {
		return 0, ErrUnauthorized
	}
	uid, err := tokens.AccessUserID(ac.AccessToken)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return uid, nil
}

func sessionID(poolID string) (uint64, error) {
	id, err := strconv.ParseUint(poolID, 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}

func loadSession(ctx context.Context, sessions SessionStore, poolID string) (model.SwipeSession, error) {
	id, err := sessionID(poolID)
	if err != nil {
		return model.SwipeSession{}, err
	}
	s, err := sessions.GetSession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SwipeSession{}, ErrInvalidID
	}
	return s, err
}

// AccessTokenFromRequest returns the access token carried by the
// `access_token` cookie, falling back to the `token` query parameter.
func AccessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
