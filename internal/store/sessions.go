package store

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

// sessionUserColumns selects a user through the login_sessions join.
const sessionUserColumns = `u.id, u.name, u.email, u.role, u.grade_level, u.password_hash, u.created_at`

// OpenSession starts a login session for a user that lasts ttl.
func (s *Store) OpenSession(userID string, ttl time.Duration) (model.LoginSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return model.LoginSession{}, fmt.Errorf("generate session token: %w", err)
	}
	now := time.Now().UTC()
	sess := model.LoginSession{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	_, err = s.db.Exec(
		`INSERT INTO login_sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return model.LoginSession{}, err
	}
	return sess, nil
}

// SessionUser returns the user logged in with token, or nil when the token
// is unknown or expired at now.
func (s *Store) SessionUser(token string, now time.Time) (*model.User, error) {
	return scanUser(s.db.QueryRow(
		`SELECT `+sessionUserColumns+`
		 FROM login_sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, now.UTC(),
	))
}

// CloseSession ends a login session. Unknown tokens are ignored.
func (s *Store) CloseSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM login_sessions WHERE token = ?`, token)
	return err
}

// PurgeSessions deletes sessions that expired before now and reports how many.
func (s *Store) PurgeSessions(now time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM login_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
