package store

import "time"

// Role is the account role stored on users.role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// PostCategory is the board a post belongs to.
type PostCategory string

const (
	CategoryGeneral     PostCategory = "general"
	CategoryInformation PostCategory = "information"
	CategoryEvent       PostCategory = "event"
)

// User is an account. Rows are soft-deleted through IsDeleted and never
// removed.
type User struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Email          string    `gorm:"size:100;not null;uniqueIndex"`
	HashedPassword string    `gorm:"not null"`
	Nickname       string    `gorm:"size:80;not null;uniqueIndex"`
	Role           Role      `gorm:"size:16;not null;default:user"`
	IsDeleted      bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time
}

func (User) TableName() string { return "users" }

// RefreshToken holds the argon2 hash of an issued refresh token. The raw
// token is never stored.
type RefreshToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;index"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE"`
	Token     string    `gorm:"size:512;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Post carries the board post columns. Only Views is maintained by this
// module.
type Post struct {
	ID         int64        `gorm:"primaryKey;autoIncrement"`
	UserID     int64        `gorm:"not null;index"`
	Title      string       `gorm:"size:200;not null"`
	Content    string       `gorm:"type:text;not null"`
	Category   PostCategory `gorm:"size:32;not null;default:general"`
	Views      int64        `gorm:"not null;default:0;index"`
	LikesCount int64        `gorm:"not null;default:0"`
	IsDeleted  bool         `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Post) TableName() string { return "posts" }
