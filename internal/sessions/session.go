package sessions

import "time"

// Session is a server-side login session. Before the OAuth callback it
// carries the anti-forgery state and the path to return to; after the
// callback it is bound to the verified subject. The session id doubles as
// the refresh token handed to API clients.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	State        string    `bson:"state" json:"state"`
	RedirectPath string    `bson:"redirectPath" json:"redirectPath"`
	Sub          string    `bson:"sub,omitempty" json:"sub,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
