package boardauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/boardauth/internal/testutil"
	"github.com/MrEthical07/boardauth/jwt"
	"github.com/MrEthical07/boardauth/store"
)

func TestRegisterCreatesUserRole(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)

	user := registerUser(t, engine, "nina@example.com", "nina")
	if user.ID <= 0 || user.Role != RoleUser || user.Email != "nina@example.com" || user.Nickname != "nina" {
		t.Fatalf("unexpected user %+v", user)
	}

	var row store.User
	if err := db.First(&row, user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if row.HashedPassword == testPassword {
		t.Fatal("password stored in clear")
	}
}

func TestRegisterDuplicates(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)
	registerUser(t, engine, "owen@example.com", "owen")

	cases := []struct {
		name    string
		in      RegisterInput
		want    error
		message string
	}{
		{
			name:    "email",
			in:      RegisterInput{Email: "owen@example.com", Password: testPassword, Nickname: "other"},
			want:    ErrEmailExists,
			message: "Email 'owen@example.com' is already taken.",
		},
		{
			name:    "nickname",
			in:      RegisterInput{Email: "new@example.com", Password: testPassword, Nickname: "owen"},
			want:    ErrNicknameExists,
			message: "Nickname 'owen' is already taken.",
		},
		{
			name:    "email checked before nickname",
			in:      RegisterInput{Email: "owen@example.com", Password: testPassword, Nickname: "owen"},
			want:    ErrEmailExists,
			message: "Email 'owen@example.com' is already taken.",
		},
		{
			name:    "duplicate checked before policy",
			in:      RegisterInput{Email: "owen@example.com", Password: "x", Nickname: "z"},
			want:    ErrEmailExists,
			message: "Email 'owen@example.com' is already taken.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Register(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if err.Error() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, err.Error())
			}
		})
	}
	if got := engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != uint64(len(cases)) {
		t.Fatalf("expected %d duplicate registrations, got %d", len(cases), got)
	}
}

func TestRegisterSoftDeletedKeepsIdentity(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)
	user := registerUser(t, engine, "pia@example.com", "pia")

	if err := db.Model(&store.User{}).Where("id = ?", user.ID).Update("is_deleted", true).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	_, err := engine.Register(context.Background(), RegisterInput{
		Email:    "pia@example.com",
		Password: testPassword,
		Nickname: "pia2",
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterPasswordPolicy(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)

	cases := []struct {
		password string
		reason   string
	}{
		{"a!b", "Password must be 6-18 characters long."},
		{"abcdefghijklmnopqrs!", "Password must be 6-18 characters long."},
		{"abcdefgh", "Password must include at least one special character."},
	}
	for _, tc := range cases {
		_, err := engine.Register(context.Background(), RegisterInput{
			Email:    "quinn@example.com",
			Password: tc.password,
			Nickname: "quinn",
		})
		if !errors.Is(err, ErrPasswordPolicy) {
			t.Fatalf("%q: expected ErrPasswordPolicy, got %v", tc.password, err)
		}
		if err.Error() != tc.reason {
			t.Fatalf("%q: expected reason %q, got %q", tc.password, tc.reason, err.Error())
		}
	}

	var n int64
	db.Model(&store.User{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected no users created, got %d", n)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)
	user := registerUser(t, engine, "ray@example.com", "ray")

	pair, err := engine.Login(context.Background(), "ray@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	codec, err := jwt.NewCodec(jwt.Config{Secret: testConfig().JWT.Secret})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	badSubject, err := codec.IssueAccess("ray", "user", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	missingUser, err := codec.IssueAccess("999", "user", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	other, err := jwt.NewCodec(jwt.Config{Secret: []byte("ffffffffffffffffffffffffffffffff")})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	forged, err := other.IssueAccess(user.IDString(), "admin", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "garbage", ErrInvalidToken},
		{"refresh token", pair.RefreshToken, ErrInvalidToken},
		{"wrong key", forged, ErrInvalidToken},
		{"non-integer subject", badSubject, ErrTokenPayloadInvalid},
		{"unknown user", missingUser, ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Authenticate(context.Background(), tc.token); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthenticateExpiredAccessToken(t *testing.T) {
	db := testutil.OpenDB(t)
	clock := &testClock{now: time.Now()}
	engine := newTestEngine(t, db, func(b *Builder) { b.WithClock(clock.Now) })
	registerUser(t, engine, "sam@example.com", "sam")

	pair, err := engine.Login(context.Background(), "sam@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	clock.Advance(31 * time.Minute)

	if _, err := engine.Authenticate(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateLatencyHistogram(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, func(b *Builder) { b.WithLatencyHistograms(true) })
	registerUser(t, engine, "tia@example.com", "tia")

	pair, err := engine.Login(context.Background(), "tia@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, c := range snap.Histograms[MetricAuthenticateLatency] {
		total += c
	}
	if total != 1 {
		t.Fatalf("expected 1 latency observation, got %d", total)
	}
	if snap.Counters[MetricAuthenticateSuccess] != 1 {
		t.Fatalf("expected 1 authenticate success, got %d", snap.Counters[MetricAuthenticateSuccess])
	}
}

func TestRequireRole(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)

	admin := &User{ID: 1, Role: RoleAdmin}
	if err := engine.RequireRole(context.Background(), admin, RoleAdmin); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}

	member := &User{ID: 2, Role: RoleUser}
	err := engine.RequireRole(context.Background(), member, RoleAdmin)
	if !errors.Is(err, ErrRuleViolation) {
		t.Fatalf("expected ErrRuleViolation, got %v", err)
	}
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if domainErr.Details["rule_code"] != "ADMIN_ONLY" {
		t.Fatalf("expected rule_code ADMIN_ONLY, got %v", domainErr.Details["rule_code"])
	}
	if domainErr.Details["required_role"] != "admin" || domainErr.Details["current_role"] != "user" || domainErr.Details["user_id"] != int64(2) {
		t.Fatalf("unexpected details %+v", domainErr.Details)
	}

	if err := engine.RequireRole(context.Background(), nil, RoleAdmin); !errors.Is(err, ErrRuleViolation) {
		t.Fatalf("expected ErrRuleViolation for nil user, got %v", err)
	}
}

func TestUserByID(t *testing.T) {
	db := testutil.OpenDB(t)
	engine := newTestEngine(t, db, nil)
	user := registerUser(t, engine, "zed@example.com", "zed")

	got, err := engine.UserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if got.Email != "zed@example.com" || got.Nickname != "zed" {
		t.Fatalf("unexpected user %+v", got)
	}

	if _, err := engine.UserByID(context.Background(), user.ID+1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
