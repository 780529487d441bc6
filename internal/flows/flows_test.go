package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/boardauth/password"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func plainPasswords() (func(string, string) (bool, error), func(string) (string, error)) {
	verify := func(pw, hash string) (bool, error) { return hash == "pw:"+pw, nil }
	hash := func(pw string) (string, error) { return "pw:" + pw, nil }
	return verify, hash
}

func newLoginDeps(store *memStore, tokens *fakeTokens) LoginDeps {
	verify, hash := plainPasswords()
	return LoginDeps{
		Tokens:         tokens.deps(7 * 24 * time.Hour),
		Transact:       store.transact,
		VerifyPassword: verify,
		HashPassword:   hash,
	}
}

func TestLoginIssuesPairAndStoresHash(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "admin")
	tokens := &fakeTokens{now: testNow}

	res := RunLogin(context.Background(), "a@x.io", "secret!", newLoginDeps(store, tokens))
	if res.Failure != LoginFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	rows := store.tx.tokensOf(u.ID)
	if len(rows) != 1 {
		t.Fatalf("expected one stored token, got %d", len(rows))
	}
	if rows[0].Hash != "h:"+res.RefreshToken {
		t.Fatal("stored value must be the hash of the issued refresh token")
	}
	if !rows[0].ExpiresAt.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", rows[0].ExpiresAt)
	}
}

func TestLoginUnknownEmailRunsDummyVerify(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	deps := newLoginDeps(store, &fakeTokens{now: testNow})
	dummy := 0
	deps.DummyVerify = func(string) { dummy++ }

	res := RunLogin(context.Background(), "nobody@x.io", "secret!", deps)
	if res.Failure != LoginFailureInvalidCredentials || res.Reason != "user_not_found" {
		t.Fatalf("unexpected result %+v", res)
	}
	if dummy != 1 {
		t.Fatalf("expected one dummy verify, got %d", dummy)
	}
}

func TestLoginWrongPasswordWritesNothing(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "user")

	res := RunLogin(context.Background(), "a@x.io", "nope!", newLoginDeps(store, &fakeTokens{now: testNow}))
	if res.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", res.Failure)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 0 {
		t.Fatalf("expected no tokens, got %d", n)
	}
}

func TestLoginPrunesOnlyExpiredTokens(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
	store.tx.addToken(u.ID, "old", testNow.Add(-time.Hour))
	store.tx.addToken(u.ID, "live", testNow.Add(time.Hour))

	res := RunLogin(context.Background(), "a@x.io", "secret!", newLoginDeps(store, &fakeTokens{now: testNow}))
	if res.Failure != LoginFailureNone {
		t.Fatalf("unexpected failure %v", res.Failure)
	}
	if res.Pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", res.Pruned)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 2 {
		t.Fatalf("expected live + new token, got %d", n)
	}
}

func TestLoginPruneFailureIsNotFatal(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
	store.tx.failDeleteExpired = errors.New("boom")
	deps := newLoginDeps(store, &fakeTokens{now: testNow})
	warned := 0
	deps.Warn = func(string, ...any) { warned++ }

	res := RunLogin(context.Background(), "a@x.io", "secret!", deps)
	if res.Failure != LoginFailureNone {
		t.Fatalf("prune failure must not fail login: %v", res.Err)
	}
	if warned != 1 {
		t.Fatalf("expected a warning, got %d", warned)
	}
}

func TestLoginSaveFailureRollsBack(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
	store.tx.addToken(u.ID, "old", testNow.Add(-time.Hour))
	store.tx.failSave = errors.New("disk full")

	res := RunLogin(context.Background(), "a@x.io", "secret!", newLoginDeps(store, &fakeTokens{now: testNow}))
	if res.Failure != LoginFailureInternal {
		t.Fatalf("expected internal failure, got %v", res.Failure)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 1 {
		t.Fatalf("prune must roll back with the failed insert, got %d rows", n)
	}
}

func TestLoginRateHooks(t *testing.T) {
	limited := errors.New("limited")

	t.Run("check blocks before lookup", func(t *testing.T) {
		store := &memStore{tx: newMemTx()}
		deps := newLoginDeps(store, &fakeTokens{now: testNow})
		deps.CheckLoginRate = func(context.Context, string, string) error { return limited }

		res := RunLogin(context.Background(), "a@x.io", "secret!", deps)
		if res.Failure != LoginFailureRateLimited {
			t.Fatalf("expected rate limited, got %v", res.Failure)
		}
		if store.commits != 0 {
			t.Fatal("no transaction expected")
		}
	})

	t.Run("increment over budget becomes rate limited", func(t *testing.T) {
		store := &memStore{tx: newMemTx()}
		deps := newLoginDeps(store, &fakeTokens{now: testNow})
		deps.IncrementLoginRate = func(context.Context, string, string) error { return limited }

		res := RunLogin(context.Background(), "a@x.io", "secret!", deps)
		if res.Failure != LoginFailureRateLimited {
			t.Fatalf("expected rate limited, got %v", res.Failure)
		}
	})

	t.Run("success resets", func(t *testing.T) {
		store := &memStore{tx: newMemTx()}
		store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
		deps := newLoginDeps(store, &fakeTokens{now: testNow})
		deps.ClientIPFromContext = func(context.Context) string { return "10.0.0.1" }
		var gotIP string
		deps.ResetLoginRate = func(_ context.Context, _, ip string) error { gotIP = ip; return nil }

		if res := RunLogin(context.Background(), "a@x.io", "secret!", deps); res.Failure != LoginFailureNone {
			t.Fatalf("unexpected failure %v", res.Failure)
		}
		if gotIP != "10.0.0.1" {
			t.Fatalf("expected reset with client ip, got %q", gotIP)
		}
	})
}

func TestLoginUpgradesWeakHash(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
	deps := newLoginDeps(store, &fakeTokens{now: testNow})
	deps.UpgradeOnLogin = true
	deps.PasswordNeedsUpgrade = func(hash string) (bool, error) { return hash == "pw:secret!", nil }
	deps.HashPassword = func(pw string) (string, error) { return "pw2:" + pw, nil }

	res := RunLogin(context.Background(), "a@x.io", "secret!", deps)
	if !res.Upgraded {
		t.Fatal("expected upgrade")
	}
	if got := store.tx.users[u.ID].PasswordHash; got != "pw2:secret!" {
		t.Fatalf("hash not replaced: %q", got)
	}
}

func loggedIn(t *testing.T) (*memStore, *fakeTokens, UserRecord, string) {
	t.Helper()
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "pw:secret!", "user")
	tokens := &fakeTokens{now: testNow}
	res := RunLogin(context.Background(), "a@x.io", "secret!", newLoginDeps(store, tokens))
	if res.Failure != LoginFailureNone {
		t.Fatalf("login: %v", res.Failure)
	}
	return store, tokens, u, res.RefreshToken
}

func TestRefreshRotatesAndInvalidatesOld(t *testing.T) {
	store, tokens, u, old := loggedIn(t)
	deps := RefreshDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact}

	res := RunRefresh(context.Background(), old, deps)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.RefreshToken == old {
		t.Fatal("expected a new refresh token")
	}
	rows := store.tx.tokensOf(u.ID)
	if len(rows) != 1 || rows[0].Hash != "h:"+res.RefreshToken {
		t.Fatalf("expected exactly the new token stored, got %+v", rows)
	}

	if again := RunRefresh(context.Background(), old, deps); again.Failure != RefreshFailureMismatch {
		t.Fatalf("replay must fail with mismatch, got %v", again.Failure)
	}
}

func TestRefreshDeletesAllSiblingSessions(t *testing.T) {
	store, tokens, u, raw := loggedIn(t)
	store.tx.addToken(u.ID, "h:other-device", testNow.Add(time.Hour))

	res := RunRefresh(context.Background(), raw, RefreshDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact})
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %v", res.Failure)
	}
	if res.Revoked != 2 {
		t.Fatalf("expected both rows revoked, got %d", res.Revoked)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 1 {
		t.Fatalf("expected only the new token, got %d", n)
	}
}

func TestRefreshFailureKinds(t *testing.T) {
	store, tokens, u, _ := loggedIn(t)
	deps := RefreshDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact}

	cases := []struct {
		name  string
		token string
		want  RefreshFailureKind
	}{
		{"undecodable", "bad", RefreshFailureDecode},
		{"access token", "access|1|user|9", RefreshFailureWrongType},
		{"non-integer subject", "refresh|abc||9", RefreshFailurePayload},
		{"zero subject", "refresh|0||9", RefreshFailurePayload},
		{"no stored rows", "refresh|42||9", RefreshFailureNotFound},
		{"no matching row", "refresh|1||999", RefreshFailureMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RunRefresh(context.Background(), tc.token, deps).Failure; got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}

	if n := len(store.tx.tokensOf(u.ID)); n != 1 {
		t.Fatalf("failed refreshes must not touch rows, got %d", n)
	}
}

func TestRefreshExpiredRowRevokesAllAndCommits(t *testing.T) {
	store, tokens, u, raw := loggedIn(t)
	store.tx.addToken(u.ID, "h:other", testNow.Add(48*time.Hour))
	tokens.now = testNow.Add(8 * 24 * time.Hour)

	res := RunRefresh(context.Background(), raw, RefreshDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact})
	if res.Failure != RefreshFailureExpired {
		t.Fatalf("expected expired, got %v", res.Failure)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 0 {
		t.Fatalf("expired refresh must revoke every row, %d left", n)
	}
}

func TestRefreshDeletedUser(t *testing.T) {
	store, tokens, u, raw := loggedIn(t)
	store.tx.deleted[u.ID] = true

	res := RunRefresh(context.Background(), raw, RefreshDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact})
	if res.Failure != RefreshFailureUserMissing {
		t.Fatalf("expected user missing, got %v", res.Failure)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 1 {
		t.Fatalf("rows must be untouched, got %d", n)
	}
}

func TestLogout(t *testing.T) {
	store, tokens, u, raw := loggedIn(t)
	deps := LogoutDeps{Tokens: tokens.deps(time.Hour), Transact: store.transact}

	res := RunLogout(context.Background(), raw, deps)
	if res.Failure != LogoutFailureNone || res.Revoked != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := len(store.tx.tokensOf(u.ID)); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}

	if again := RunLogout(context.Background(), raw, deps); again.Failure != LogoutFailureNone {
		t.Fatalf("logout with nothing stored should succeed, got %v", again.Failure)
	}
	if got := RunLogout(context.Background(), "access|1|user|1", deps).Failure; got != LogoutFailureWrongType {
		t.Fatalf("expected wrong type, got %v", got)
	}
	if got := RunLogout(context.Background(), "refresh|x||1", deps).Failure; got != LogoutFailurePayload {
		t.Fatalf("expected payload failure, got %v", got)
	}
	if got := RunLogout(context.Background(), "bad", deps).Failure; got != LogoutFailureDecode {
		t.Fatalf("expected decode failure, got %v", got)
	}
}

func newRegisterDeps(store *memStore) RegisterDeps {
	_, hash := plainPasswords()
	return RegisterDeps{
		Transact:         store.transact,
		ValidatePassword: password.DefaultPolicy().Validate,
		HashPassword:     hash,
		DefaultRole:      "user",
	}
}

func TestRegister(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	deps := newRegisterDeps(store)

	res := RunRegister(context.Background(), RegisterRequest{Email: "a@x.io", Password: "abcde!", Nickname: "a"}, deps)
	if res.Failure != RegisterFailureNone {
		t.Fatalf("unexpected failure %v: %v", res.Failure, res.Err)
	}
	if res.User.ID == 0 || res.User.Role != "user" || res.User.PasswordHash != "pw:abcde!" {
		t.Fatalf("unexpected user %+v", res.User)
	}
}

func TestRegisterCheckOrder(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	store.tx.addUser("a@x.io", "taken", "h", "user")
	gone := store.tx.addUser("gone@x.io", "ghost", "h", "user")
	store.tx.deleted[gone.ID] = true
	deps := newRegisterDeps(store)

	cases := []struct {
		name   string
		req    RegisterRequest
		want   RegisterFailureKind
		reason string
	}{
		{"email first even with weak password", RegisterRequest{"a@x.io", "x", "taken"}, RegisterFailureEmailExists, ""},
		{"nickname before policy", RegisterRequest{"b@x.io", "x", "taken"}, RegisterFailureNicknameExists, ""},
		{"soft-deleted email stays taken", RegisterRequest{"gone@x.io", "abcde!", "new"}, RegisterFailureEmailExists, ""},
		{"soft-deleted nickname stays taken", RegisterRequest{"new@x.io", "abcde!", "ghost"}, RegisterFailureNicknameExists, ""},
		{"length", RegisterRequest{"c@x.io", "ab!", "c"}, RegisterFailurePolicy, "Password must be 6-18 characters long."},
		{"symbol", RegisterRequest{"c@x.io", "abcdef", "c"}, RegisterFailurePolicy, "Password must include at least one special character."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := RunRegister(context.Background(), tc.req, deps)
			if res.Failure != tc.want {
				t.Fatalf("got %v want %v", res.Failure, tc.want)
			}
			if res.Reason != tc.reason {
				t.Fatalf("got reason %q want %q", res.Reason, tc.reason)
			}
		})
	}
}

func TestRegisterInsertRace(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	deps := newRegisterDeps(store)

	store.tx.createErr = ErrDuplicateNickname
	res := RunRegister(context.Background(), RegisterRequest{"a@x.io", "abcde!", "a"}, deps)
	if res.Failure != RegisterFailureNicknameExists {
		t.Fatalf("expected nickname exists, got %v", res.Failure)
	}

	store.tx.createErr = ErrDuplicateEmail
	res = RunRegister(context.Background(), RegisterRequest{"a@x.io", "abcde!", "a"}, deps)
	if res.Failure != RegisterFailureEmailExists {
		t.Fatalf("expected email exists, got %v", res.Failure)
	}
}

func TestAuthenticate(t *testing.T) {
	store := &memStore{tx: newMemTx()}
	u := store.tx.addUser("a@x.io", "a", "h", "admin")
	gone := store.tx.addUser("b@x.io", "b", "h", "user")
	store.tx.deleted[gone.ID] = true
	deps := AuthenticateDeps{Decode: (&fakeTokens{}).deps(time.Hour).Decode, Transact: store.transact}

	res := RunAuthenticate(context.Background(), "access|"+u.IDString()+"|admin|1", deps)
	if res.Failure != AuthenticateFailureNone || res.User.Email != "a@x.io" {
		t.Fatalf("unexpected result %+v", res)
	}

	cases := []struct {
		token string
		want  AuthenticateFailureKind
	}{
		{"bad", AuthenticateFailureDecode},
		{"refresh|1||1", AuthenticateFailureWrongType},
		{"access|||1", AuthenticateFailureNoSubject},
		{"access|abc|user|1", AuthenticateFailurePayload},
		{"access|" + gone.IDString() + "|user|1", AuthenticateFailureUserMissing},
		{"access|999|user|1", AuthenticateFailureUserMissing},
	}
	for _, tc := range cases {
		if got := RunAuthenticate(context.Background(), tc.token, deps).Failure; got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.token, got, tc.want)
		}
	}
}
