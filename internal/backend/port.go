package backend

import (
	"context"
	"time"

	"backend-eventhub/internal/models"
)

// Kind is the capability flag of a Port. Events created through a remote
// port get OriginRemote, events created through a local port OriginLocal.
type Kind string

const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPDeclined RSVPStatus = "declined"
)

type Feed struct {
	Events  []models.Event
	Friends []models.Friend
}

type RSVPRequest struct {
	EventID   string
	BackendID string
	UserID    string
	Status    RSVPStatus
	Arrival   *time.Time
}

type CreateRequest struct {
	ID          string
	Owner       models.Friend
	OwnerUID    string
	Title       string
	Description string
	StartAt     time.Time
	EndAt       time.Time
	Location    string
	Coordinate  *models.Coordinate
	Privacy     models.Privacy
	Categories  []string
	ImageURL    string
}

type UpdateRequest struct {
	EventID               string
	Title                 string
	Location              string
	StartAt               time.Time
	EndAt                 time.Time
	Coordinate            *models.Coordinate
	Privacy               models.Privacy
	SharedInviteFriendIDs []string
	Categories            []string
}

// Port is everything the feed needs from the event store.
type Port interface {
	Kind() Kind
	FetchFeed(ctx context.Context, viewer models.UserSession, near *models.Coordinate) (Feed, error)
	SendInvite(ctx context.Context, eventID string, from models.Friend, to []models.Friend) error
	RSVP(ctx context.Context, req RSVPRequest) error
	CreateEvent(ctx context.Context, req CreateRequest) (string, error)
	UpdateEvent(ctx context.Context, req UpdateRequest) error
	DeleteEvent(ctx context.Context, eventID string, hard bool) error
}

func rsvpKey(eventID, backendID string) string {
	if backendID != "" {
		return backendID
	}
	return eventID
}
