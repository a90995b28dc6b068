package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/mealmatch/internal/model"
)

// SessionRepo reads swipe sessions and the group memberships that decide who
// may take part in them.  Writes belong to the session CRUD surface and are
// not needed by the realtime layer.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// GetSession returns the swipe session with the given id or ErrNotFound.
func (r *SessionRepo) GetSession(ctx context.Context, id uint64) (model.SwipeSession, error) {
	var s model.SwipeSession
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, group_id, status, created_at FROM swipe_sessions WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.GroupID, &s.Status, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SwipeSession{}, ErrNotFound
	}
	return s, err
}

// SessionGroup returns the id of the group owning the session or ErrNotFound.
func (r *SessionRepo) SessionGroup(ctx context.Context, id uint64) (uint64, error) {
	var group uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT group_id FROM swipe_sessions WHERE id=? LIMIT 1", id).Scan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return group, err
}

// IsMember reports whether userID belongs to groupID.
func (r *SessionRepo) IsMember(ctx context.Context, groupID, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM group_members WHERE group_id=? AND user_id=? LIMIT 1",
		groupID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
