package model

import "time"

// Account is a registered player. It is the root aggregate: live progress and
// the publication feed both belong to exactly one account.
//
// WHY PasswordHash AND NOT Password?
// Only the bcrypt hash is ever persisted. The `json:"-"` tag keeps it out of
// every response, even if an Account is accidentally encoded whole.
type Account struct {
	ID             string      `json:"_id"            db:"id"`
	Username       string      `json:"username"       db:"username"`
	PasswordHash   string      `json:"-"              db:"password_hash"`
	ProfilePicture string      `json:"profilePicture" db:"profile_picture"`
	LiveProgress   RawProgress `json:"-"              db:"-"`
	CreatedAt      time.Time   `json:"-"              db:"-"`
}

// Publication is an immutable, timestamped copy of a progress payload that a
// player shared on their public feed.
type Publication struct {
	Timestamp time.Time   `json:"timestamp"`
	Progress  RawProgress `json:"progress"`
}

// Profile is the public view of an account returned by GET /profile/{id}.
type Profile struct {
	ID             string        `json:"_id"`
	Username       string        `json:"username"`
	Publications   []Publication `json:"publications"`
	ProfilePicture string        `json:"profilePicture"`
}

// AccountSummary is one row of a username search.
type AccountSummary struct {
	ID             string `json:"_id"            db:"id"`
	Username       string `json:"username"       db:"username"`
	ProfilePicture string `json:"profilePicture" db:"profile_picture"`
}
