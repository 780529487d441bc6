package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/boardauth/jwt"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each request method to the matching flow.
type Deps struct {
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Register     RegisterDeps
	Authenticate AuthenticateDeps
}

// TokenDeps is the token half shared by login, refresh and logout.
type TokenDeps struct {
	Decode        func(string) (*jwt.Payload, error)
	IssueAccess   func(userID, role string) (string, error)
	IssueRefresh  func(userID string) (string, error)
	HashRefresh   func(raw string) (string, error)
	VerifyRefresh func(raw, hash string) (bool, error)
	RefreshTTL    time.Duration
	Now           func() time.Time
}

func (d TokenDeps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// issuePair signs a fresh access and refresh token for user and stores the
// refresh hash through tx.
func (d TokenDeps) issuePair(ctx context.Context, tx Tx, user UserRecord) (string, string, error) {
	sub := user.IDString()

	access, err := d.IssueAccess(sub, user.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := d.IssueRefresh(sub)
	if err != nil {
		return "", "", err
	}
	hash, err := d.HashRefresh(refresh)
	if err != nil {
		return "", "", err
	}
	if err := tx.SaveRefreshToken(ctx, user.ID, hash, d.now().Add(d.RefreshTTL)); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// decodeRefresh runs the checks shared by refresh and logout: signature and
// expiry, token type, then subject.
func (d TokenDeps) decodeRefresh(raw string) (int64, refreshCheck) {
	payload, err := d.Decode(raw)
	if err != nil {
		return 0, refreshCheckDecode
	}
	if payload.Type != jwt.TypeRefresh {
		return 0, refreshCheckType
	}
	id, ok := parseSubject(payload.Subject)
	if !ok {
		return 0, refreshCheckSubject
	}
	return id, refreshCheckOK
}

type refreshCheck int

const (
	refreshCheckOK refreshCheck = iota
	refreshCheckDecode
	refreshCheckType
	refreshCheckSubject
)
