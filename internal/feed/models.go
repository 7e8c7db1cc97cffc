package feed

import (
	"time"

	"backend-eventhub/internal/models"
)

type Role string

const (
	RoleMe          Role = "me"
	RoleInvitedMe   Role = "invited_me"
	RoleGoing       Role = "going"
	RoleInvitedByMe Role = "invited_by_me"
)

type Badge struct {
	Friend      models.Friend `json:"friend"`
	Role        Role          `json:"role"`
	Placeholder bool          `json:"placeholder,omitempty"`
}

// FeedEvent is rebuilt from scratch on every refresh.
type FeedEvent struct {
	Event         models.Event `json:"event"`
	Badges        []Badge      `json:"badges"`
	CardBadges    []Badge      `json:"card_badges"`
	DistanceKm    *float64     `json:"distance_km,omitempty"`
	IsAttending   bool         `json:"is_attending"`
	AttendeeCount int          `json:"attendee_count"`
	IsEditable    bool         `json:"is_editable"`
	MyArrival     *time.Time   `json:"my_arrival,omitempty"`
}

// Criteria narrows the upcoming list. Zero MaxDistanceKm means no cutoff.
type Criteria struct {
	Query         string   `json:"query"`
	Categories    []string `json:"categories"`
	MaxDistanceKm float64  `json:"max_distance_km"`
}

type Options struct {
	EnableCategories     bool
	EnablePastPagination bool
	PastPageSize         int
}

func DefaultOptions() Options {
	return Options{EnableCategories: true, EnablePastPagination: true, PastPageSize: 5}
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Snapshot is the published, read-only state of one viewer's feed.
type Snapshot struct {
	Version          uint64      `json:"version"`
	Upcoming         []FeedEvent `json:"upcoming"`
	FilteredUpcoming []FeedEvent `json:"filtered_upcoming"`
	Past             []FeedEvent `json:"past"`
	VisiblePast      []FeedEvent `json:"visible_past"`
	ShowAllPast      bool        `json:"show_all_past"`
	Criteria         Criteria    `json:"criteria"`
	Notice           *Notice     `json:"notice,omitempty"`
}

// Draft carries the editable fields of an event.
type Draft struct {
	Title                 string             `json:"title"`
	Description           string             `json:"description"`
	Location              string             `json:"location"`
	StartAt               time.Time          `json:"start_at"`
	EndAt                 time.Time          `json:"end_at"`
	Coordinate            *models.Coordinate `json:"coordinate"`
	Privacy               models.Privacy     `json:"privacy"`
	Categories            []string           `json:"categories"`
	ImageURL              string             `json:"image_url"`
	SharedInviteFriendIDs []string           `json:"shared_invite_friend_ids"`
}
