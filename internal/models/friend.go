package models

import "time"

type Friend struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// UserSession is replaced wholesale on sign-in and re-auth, never patched.
type UserSession struct {
	Viewer      Friend      `json:"viewer"`
	Location    *Coordinate `json:"location,omitempty"`
	ExternalUID string      `json:"external_uid,omitempty"`
	Token       string      `json:"-"`
	Recovery    string      `json:"-"`
	SignedInAt  time.Time   `json:"signed_in_at"`
}

// IsViewer reports whether id names the session's user under either of its
// identifiers.
func (s UserSession) IsViewer(id string) bool {
	if id == "" {
		return false
	}
	return id == s.Viewer.ID || (s.ExternalUID != "" && id == s.ExternalUID)
}
