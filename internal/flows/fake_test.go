package flows

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/boardauth/jwt"
)

// memTx is an in-memory Tx. memTransactor snapshots it before fn and
// restores the snapshot when fn fails, like a rollback.
type memTx struct {
	users      map[int64]UserRecord
	deleted    map[int64]bool
	tokens     []TokenRecord
	nextUserID int64
	nextTokID  int64

	failDeleteExpired error
	failSave          error
	createErr         error
}

func newMemTx() *memTx {
	return &memTx{users: map[int64]UserRecord{}, deleted: map[int64]bool{}}
}

func (m *memTx) addUser(email, nickname, hash, role string) UserRecord {
	m.nextUserID++
	u := UserRecord{ID: m.nextUserID, Email: email, Nickname: nickname, PasswordHash: hash, Role: role}
	m.users[u.ID] = u
	return u
}

func (m *memTx) addToken(userID int64, hash string, expiresAt time.Time) {
	m.nextTokID++
	m.tokens = append(m.tokens, TokenRecord{ID: m.nextTokID, UserID: userID, Hash: hash, ExpiresAt: expiresAt})
}

func (m *memTx) tokensOf(userID int64) []TokenRecord {
	var out []TokenRecord
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memTx) clone() *memTx {
	c := *m
	c.users = make(map[int64]UserRecord, len(m.users))
	for k, v := range m.users {
		c.users[k] = v
	}
	c.deleted = make(map[int64]bool, len(m.deleted))
	for k, v := range m.deleted {
		c.deleted[k] = v
	}
	c.tokens = append([]TokenRecord(nil), m.tokens...)
	return &c
}

func (m *memTx) UserByID(_ context.Context, id int64) (*UserRecord, error) {
	u, ok := m.users[id]
	if !ok || m.deleted[id] {
		return nil, ErrRecordNotFound
	}
	return &u, nil
}

func (m *memTx) UserByEmail(_ context.Context, email string) (*UserRecord, error) {
	for id, u := range m.users {
		if u.Email == email && !m.deleted[id] {
			u := u
			return &u, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memTx) EmailTaken(_ context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTx) NicknameTaken(_ context.Context, nickname string) (bool, error) {
	for _, u := range m.users {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTx) CreateUser(_ context.Context, u *UserRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	if u.Role == "" {
		u.Role = "user"
	}
	m.nextUserID++
	u.ID = m.nextUserID
	m.users[u.ID] = *u
	return nil
}

func (m *memTx) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	u, ok := m.users[userID]
	if !ok {
		return ErrRecordNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *memTx) RefreshTokens(_ context.Context, userID int64) ([]TokenRecord, error) {
	return m.tokensOf(userID), nil
}

func (m *memTx) SaveRefreshToken(_ context.Context, userID int64, hash string, expiresAt time.Time) error {
	if m.failSave != nil {
		return m.failSave
	}
	m.addToken(userID, hash, expiresAt)
	return nil
}

func (m *memTx) DeleteRefreshTokens(_ context.Context, userID int64) (int64, error) {
	return m.deleteWhere(func(t TokenRecord) bool { return t.UserID == userID }), nil
}

func (m *memTx) DeleteExpiredRefreshTokens(_ context.Context, userID int64, now time.Time) (int64, error) {
	if m.failDeleteExpired != nil {
		return 0, m.failDeleteExpired
	}
	return m.deleteWhere(func(t TokenRecord) bool { return t.UserID == userID && t.ExpiresAt.Before(now) }), nil
}

func (m *memTx) deleteWhere(match func(TokenRecord) bool) int64 {
	kept := m.tokens[:0]
	var n int64
	for _, t := range m.tokens {
		if match(t) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tokens = kept
	return n
}

type memStore struct {
	tx      *memTx
	commits int
}

func (s *memStore) transact(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	snapshot := s.tx.clone()
	if err := fn(ctx, s.tx); err != nil {
		s.tx = snapshot
		return err
	}
	s.commits++
	return nil
}

// fakeTokens encodes payloads as "type|sub|role|n"; "bad" tokens fail to
// decode. Hashes are "h:" + raw.
type fakeTokens struct {
	now time.Time
	n   int
}

func (f *fakeTokens) deps(ttl time.Duration) TokenDeps {
	return TokenDeps{
		Decode: func(s string) (*jwt.Payload, error) {
			parts := strings.Split(s, "|")
			if len(parts) != 4 {
				return nil, jwt.ErrTokenDecode
			}
			return &jwt.Payload{Type: jwt.TokenType(parts[0]), Subject: parts[1], Role: parts[2]}, nil
		},
		IssueAccess: func(userID, role string) (string, error) {
			f.n++
			return "access|" + userID + "|" + role + "|" + strconv.Itoa(f.n), nil
		},
		IssueRefresh: func(userID string) (string, error) {
			f.n++
			return "refresh|" + userID + "||" + strconv.Itoa(f.n), nil
		},
		HashRefresh:   func(raw string) (string, error) { return "h:" + raw, nil },
		VerifyRefresh: func(raw, hash string) (bool, error) { return hash == "h:"+raw, nil },
		RefreshTTL:    ttl,
		Now:           func() time.Time { return f.now },
	}
}
