package boardauth

import (
	"strconv"
	"time"

	"github.com/MrEthical07/boardauth/store"
)

// Role is the single authorization attribute of a user.
type Role = store.Role

const (
	RoleAdmin = store.RoleAdmin
	RoleUser  = store.RoleUser
)

// TokenType is the OAuth2 token_type returned with every pair.
const TokenType = "bearer"

// TokenPair is the result of Login and Refresh. Both tokens are raw; only
// an Argon2 hash of the refresh token is stored.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// User is the public view of an account. The password hash never leaves
// the engine.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IDString returns the id as it appears in the token subject.
func (u *User) IDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}
