package api

import "context"

// UserDTO is the wire shape of the authenticated user.
type UserDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	WebURL    string `json:"web_url"`
	CreatedAt *Time  `json:"created_at"`
}

// CurrentUser fetches the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (UserDTO, error) {
	return Send[UserDTO](ctx, c, Get("/user"))
}
