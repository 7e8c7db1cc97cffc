package models

import "time"

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// Origin records whether an event has a remote counterpart. It is stamped
// once when the event is created and never re-derived.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Event struct {
	ID          string      `json:"id"`
	BackendID   string      `json:"backend_id,omitempty"`
	Origin      Origin      `json:"origin"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location"`
	StartAt     time.Time   `json:"start_at"`
	EndAt       time.Time   `json:"end_at,omitempty"`
	Coordinate  *Coordinate `json:"coordinate,omitempty"`
	Privacy     Privacy     `json:"privacy"`
	// OwnerID is the owner's external uid; OwnerProfileID is the profile
	// id used by friends, badges and moderation.
	OwnerID        string `json:"owner_id,omitempty"`
	OwnerProfileID string `json:"owner_profile_id,omitempty"`

	AttendingFriendIDs    []string             `json:"attending_friend_ids"`
	SharedInviteFriendIDs []string             `json:"shared_invite_friend_ids"`
	InvitedByFriendIDs    []string             `json:"invited_by_friend_ids"`
	ArrivalTimes          map[string]time.Time `json:"arrival_times,omitempty"`
	Categories            []string             `json:"categories"`

	ImageData []byte `json:"-"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Clone returns a deep copy so snapshots never share slices or maps with
// the live canonical list.
func (e Event) Clone() Event {
	out := e
	if e.Coordinate != nil {
		c := *e.Coordinate
		out.Coordinate = &c
	}
	out.AttendingFriendIDs = cloneStrings(e.AttendingFriendIDs)
	out.SharedInviteFriendIDs = cloneStrings(e.SharedInviteFriendIDs)
	out.InvitedByFriendIDs = cloneStrings(e.InvitedByFriendIDs)
	out.Categories = cloneStrings(e.Categories)
	if e.ArrivalTimes != nil {
		out.ArrivalTimes = make(map[string]time.Time, len(e.ArrivalTimes))
		for k, v := range e.ArrivalTimes {
			out.ArrivalTimes[k] = v
		}
	}
	if e.ImageData != nil {
		out.ImageData = append([]byte(nil), e.ImageData...)
	}
	return out
}

func CloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
