package session

import (
	"context"
	"errors"
	"testing"

	"backend-eventhub/internal/models"
)

type fakeVerifier struct {
	uids      map[string]string
	recovered int
	recoverOK bool
}

func (f *fakeVerifier) ValidateAccessToken(token string) (string, error) {
	uid, ok := f.uids[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return uid, nil
}

func (f *fakeVerifier) Recover(userID, secret string) (string, error) {
	if !f.recoverOK {
		return "", errors.New("recovery rejected")
	}
	f.recovered++
	return "recovered-" + userID, nil
}

func newTestManager() (*Manager, *fakeVerifier) {
	v := &fakeVerifier{uids: map[string]string{"tok-1": "uid-1"}, recoverOK: true}
	return NewManager(v, NewMemoryProfiles()), v
}

func TestSignInSignOutNotifies(t *testing.T) {
	m, _ := newTestManager()
	var changes []Change
	m.OnChange(func(ch Change) { changes = append(changes, ch) })

	sess, err := m.SignIn(context.Background(), SignInRequest{Token: "tok-1", DisplayName: "Me", Location: &models.Coordinate{Lat: 1, Lng: 2}})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.ExternalUID != "uid-1" || sess.Viewer.ID == "" || sess.Viewer.DisplayName != "Me" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if got, ok := m.Get("uid-1"); !ok || got.Viewer.ID != sess.Viewer.ID {
		t.Fatalf("expected stored session")
	}

	again, _ := m.SignIn(context.Background(), SignInRequest{Token: "tok-1"})
	if again.Viewer.ID != sess.Viewer.ID {
		t.Fatalf("expected stable profile across sign-ins")
	}

	if !m.SignOut("uid-1") {
		t.Fatalf("expected sign out")
	}
	if m.SignOut("uid-1") {
		t.Fatalf("second sign out must report no session")
	}
	if _, ok := m.Get("uid-1"); ok {
		t.Fatalf("session should be destroyed")
	}

	if len(changes) != 3 || changes[0].Kind != SignedIn || changes[2].Kind != SignedOut {
		t.Fatalf("unexpected changes %+v", changes)
	}
}

func TestSignInBadToken(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.SignIn(context.Background(), SignInRequest{Token: "nope"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestReauthenticate(t *testing.T) {
	m, v := newTestManager()
	ctx := context.Background()

	if _, err := m.Reauthenticate(ctx, "uid-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session, got %v", err)
	}

	if _, err := m.SignIn(ctx, SignInRequest{Token: "tok-1"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := m.Reauthenticate(ctx, "uid-1"); !errors.Is(err, ErrRecoveryUnavailable) {
		t.Fatalf("expected recovery unavailable, got %v", err)
	}

	if _, err := m.SignIn(ctx, SignInRequest{Token: "tok-1", Recovery: "secret"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	var refreshed bool
	m.OnChange(func(ch Change) { refreshed = refreshed || ch.Kind == Refreshed })

	sess, err := m.Reauthenticate(ctx, "uid-1")
	if err != nil {
		t.Fatalf("reauth: %v", err)
	}
	if sess.Token != "recovered-uid-1" || v.recovered != 1 || !refreshed {
		t.Fatalf("expected session replaced with recovered token")
	}
	stored, _ := m.Get("uid-1")
	if stored.Token != "recovered-uid-1" {
		t.Fatalf("stored session not replaced")
	}

	v.recoverOK = false
	if _, err := m.Reauthenticate(ctx, "uid-1"); err == nil {
		t.Fatalf("expected recovery failure")
	}
}

func TestUpdateLocation(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.UpdateLocation("uid-1", models.Coordinate{Lat: 1, Lng: 1}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := m.SignIn(context.Background(), SignInRequest{Token: "tok-1"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	var changes []Change
	m.OnChange(func(ch Change) { changes = append(changes, ch) })
	sess, err := m.UpdateLocation("uid-1", models.Coordinate{Lat: -6.2, Lng: 106.8})
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if sess.Location == nil || sess.Location.Lat != -6.2 {
		t.Fatalf("unexpected session %+v", sess)
	}
	if len(changes) != 1 || changes[0].Kind != Refreshed {
		t.Fatalf("expected one refreshed change, got %+v", changes)
	}
	stored, _ := m.Get("uid-1")
	if stored.Location == nil || stored.Location.Lng != 106.8 {
		t.Fatalf("session not replaced")
	}
}
