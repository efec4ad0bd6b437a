package identity

import "time"

// User is a registered member as the gateway stub sees it.
type User struct {
	ID           string
	Phone        string
	PasswordHash []byte
	Profile      map[string]any
	Verified     bool
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Phone    string
	Password string
}

// PublicProfile is the user profile blob returned to clients.
func (u User) PublicProfile() map[string]any {
	out := make(map[string]any, len(u.Profile)+3)
	for k, v := range u.Profile {
		out[k] = v
	}
	out["id"] = u.ID
	out["phone"] = u.Phone
	out["verified"] = u.Verified
	return out
}
