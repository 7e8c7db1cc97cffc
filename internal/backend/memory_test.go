package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-eventhub/internal/models"
)

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if m.Kind() != KindLocal {
		t.Fatalf("expected local kind")
	}
	me := viewer()
	other := models.UserSession{Viewer: models.Friend{ID: "p-2"}, ExternalUID: "uid-2"}

	id, err := m.CreateEvent(ctx, CreateRequest{
		Owner: me.Viewer, OwnerUID: me.ExternalUID, Title: "Secret",
		StartAt: time.Now().Add(time.Hour), Privacy: models.PrivacyPrivate,
	})
	if err != nil || id == "" {
		t.Fatalf("create: %v", err)
	}

	feed, _ := m.FetchFeed(ctx, other, nil)
	if len(feed.Events) != 0 {
		t.Fatalf("private event leaked to non-invitee")
	}

	if err := m.SendInvite(ctx, id, me.Viewer, []models.Friend{other.Viewer}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	feed, _ = m.FetchFeed(ctx, other, nil)
	if len(feed.Events) != 1 || len(feed.Events[0].InvitedByFriendIDs) != 1 {
		t.Fatalf("expected invitee to see event with inviter: %+v", feed.Events)
	}
	if e := feed.Events[0]; e.OwnerID != "uid-1" || e.OwnerProfileID != "p-1" {
		t.Fatalf("expected owner uid and profile id, got %q/%q", e.OwnerID, e.OwnerProfileID)
	}

	arrival := time.Now().Add(2 * time.Hour)
	if err := m.RSVP(ctx, RSVPRequest{EventID: id, UserID: "p-2", Status: RSVPGoing, Arrival: &arrival}); err != nil {
		t.Fatalf("rsvp: %v", err)
	}
	feed, _ = m.FetchFeed(ctx, me, nil)
	if len(feed.Events[0].AttendingFriendIDs) != 2 {
		t.Fatalf("expected two attendees, got %v", feed.Events[0].AttendingFriendIDs)
	}
	if err := m.RSVP(ctx, RSVPRequest{EventID: id, UserID: "p-2", Status: RSVPDeclined}); err != nil {
		t.Fatalf("decline: %v", err)
	}
	feed, _ = m.FetchFeed(ctx, me, nil)
	if len(feed.Events[0].AttendingFriendIDs) != 1 {
		t.Fatalf("expected decline to remove attendee")
	}

	if err := m.UpdateEvent(ctx, UpdateRequest{EventID: id, Title: "Open", Privacy: models.PrivacyPublic}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := m.DeleteEvent(ctx, id, false); err != nil {
		t.Fatalf("delete: %v", err)
	}
	feed, _ = m.FetchFeed(ctx, me, nil)
	if len(feed.Events) != 0 {
		t.Fatalf("expected soft-deleted event hidden")
	}
	if err := m.DeleteEvent(ctx, id, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}
}

func TestMemoryRSVPByBackendID(t *testing.T) {
	m := NewMemory()
	m.Put(models.Event{ID: "e1", BackendID: "remote-1", Privacy: models.PrivacyPublic})
	if err := m.RSVP(context.Background(), RSVPRequest{EventID: "other", BackendID: "remote-1", UserID: "p-1", Status: RSVPGoing}); err != nil {
		t.Fatalf("rsvp: %v", err)
	}
	m.SetFriends("p-1", []models.Friend{{ID: "p-2"}})
	feed, _ := m.FetchFeed(context.Background(), viewer(), nil)
	if len(feed.Events[0].AttendingFriendIDs) != 1 || len(feed.Friends) != 1 {
		t.Fatalf("unexpected feed %+v", feed)
	}
}
