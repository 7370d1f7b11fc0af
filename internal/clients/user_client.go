package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// User is the slice of a staff account the ledger needs for display.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// DisplayName prefers the full name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

type UserClient struct {
	baseClient
}

func NewUserClient(baseURL string, timeout time.Duration) *UserClient {
	return &UserClient{newBaseClient("users", baseURL, timeout)}
}

func (c *UserClient) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
