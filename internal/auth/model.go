package auth

import (
	"time"

	"store-api/internal/record"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

var UserTable = record.Table[User]{
	Name:       "users",
	NameColumn: "username",
	Columns:    []string{"username", "password_hash", "created_at"},
	Scan: func(row record.Scanner) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
		return u, err
	},
	Values: func(u User) []any { return []any{u.Username, u.PasswordHash, u.CreatedAt} },
	ID:     func(u User) int64 { return u.ID },
	SetID:  func(u *User, id int64) { u.ID = id },
}

func NewMemoryUserStore() *record.MemoryStore[User] {
	return record.NewMemoryStore(
		func(u User) string { return u.Username },
		UserTable.ID,
		UserTable.SetID,
	)
}

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
