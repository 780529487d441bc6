package flows

import "context"

type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureWrongType
	LogoutFailurePayload
	LogoutFailureInternal
)

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	UserID  string
	Revoked int64
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Tokens   TokenDeps
	Transact Transactor
}

// RunLogout revokes every stored refresh token of the token's subject. The
// presented token is not matched against the stored hashes; a valid
// signature is enough. Logging out a user with no stored tokens succeeds.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	userID, check := deps.Tokens.decodeRefresh(refreshToken)
	switch check {
	case refreshCheckDecode:
		return LogoutResult{Failure: LogoutFailureDecode}
	case refreshCheckType:
		return LogoutResult{Failure: LogoutFailureWrongType}
	case refreshCheckSubject:
		return LogoutResult{Failure: LogoutFailurePayload}
	}

	res := LogoutResult{UserID: UserRecord{ID: userID}.IDString()}
	err := deps.Transact(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.DeleteRefreshTokens(ctx, userID)
		res.Revoked = n
		return err
	})
	if err != nil {
		res.Failure = LogoutFailureInternal
		res.Err = err
	}
	return res
}
