package feed

import (
	"sort"
	"strings"
	"time"

	"backend-eventhub/internal/models"
	"backend-eventhub/internal/shared/geo"
	"backend-eventhub/internal/visibility"
)

type Input struct {
	Events     []models.Event
	Friends    []models.Friend
	Viewer     models.UserSession
	Visibility visibility.Sets
	// Created holds IDs of events this viewer created, including ones that
	// have no remote owner yet.
	Created map[string]struct{}
	// Attending holds events the viewer RSVPed to locally.
	Attending map[string]struct{}
	Now       time.Time
}

type Result struct {
	Upcoming []FeedEvent
	Past     []FeedEvent
}

// Rebuild derives both feed partitions from the canonical events. It does
// no I/O and cannot fail.
func Rebuild(in Input) Result {
	catalog := make(map[string]models.Friend, len(in.Friends))
	for _, f := range in.Friends {
		catalog[f.ID] = f
	}

	var upcoming, past []models.Event
	for _, e := range in.Events {
		if e.StartAt.Before(in.Now) {
			past = append(past, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}

	res := Result{
		Upcoming: decorateAll(upcoming, in, catalog),
		Past:     decorateAll(past, in, catalog),
	}
	sortFeed(res.Upcoming, true)
	sortFeed(res.Past, false)
	return res
}

func decorateAll(events []models.Event, in Input, catalog map[string]models.Friend) []FeedEvent {
	out := make([]FeedEvent, 0, len(events))
	for _, e := range events {
		if !Visible(e, in) {
			continue
		}
		out = append(out, decorate(e.Clone(), in, catalog))
	}
	return out
}

// Visible applies hidden, blocked and privacy rules.
func Visible(e models.Event, in Input) bool {
	if in.Visibility.IsHidden(e.ID) || in.Visibility.IsBlocked(e.OwnerID) || in.Visibility.IsBlocked(e.OwnerProfileID) {
		return false
	}
	if e.Privacy == models.PrivacyPublic {
		return true
	}
	if _, ok := in.Created[e.ID]; ok {
		return true
	}
	for _, id := range e.SharedInviteFriendIDs {
		if in.Viewer.IsViewer(id) {
			return true
		}
	}
	return false
}

func decorate(e models.Event, in Input, catalog map[string]models.Friend) FeedEvent {
	viewer := in.Viewer
	attending := dedup(e.AttendingFriendIDs)
	invitedMe := dedup(e.InvitedByFriendIDs)
	shared := dedup(e.SharedInviteFriendIDs)

	_, locallyAttending := in.Attending[e.ID]
	isAttending := locallyAttending || containsViewer(attending, viewer)

	badges := make([]Badge, 0, len(invitedMe)+len(attending)+len(shared)+1)
	inviters := make(map[string]struct{}, len(invitedMe))
	for _, id := range invitedMe {
		if viewer.IsViewer(id) {
			continue
		}
		badges = append(badges, resolve(id, RoleInvitedMe, viewer, catalog))
		inviters[id] = struct{}{}
	}
	for _, id := range attending {
		if _, ok := inviters[id]; ok || viewer.IsViewer(id) {
			continue
		}
		badges = append(badges, resolve(id, RoleGoing, viewer, catalog))
	}
	for _, id := range shared {
		if _, ok := inviters[id]; ok || viewer.IsViewer(id) {
			continue
		}
		badges = append(badges, resolve(id, RoleInvitedByMe, viewer, catalog))
	}
	if isAttending && !hasRole(badges, RoleMe) {
		badges = append([]Badge{{Friend: viewer.Viewer, Role: RoleMe}}, badges...)
	}

	cards := make([]Badge, 0, len(badges))
	going := 0
	for _, b := range badges {
		if !b.Placeholder {
			cards = append(cards, b)
		}
		if b.Role == RoleGoing || b.Role == RoleMe {
			going++
		}
	}

	count := len(attending)
	if going > count {
		count = going
	}

	fe := FeedEvent{
		Event:         e,
		Badges:        badges,
		CardBadges:    cards,
		IsAttending:   isAttending,
		AttendeeCount: count,
		IsEditable:    editable(e, viewer, in.Created),
		MyArrival:     arrivalFor(e, viewer),
	}
	if viewer.Location != nil && e.Coordinate != nil {
		d := geo.HaversineKm(viewer.Location.Lat, viewer.Location.Lng, e.Coordinate.Lat, e.Coordinate.Lng)
		fe.DistanceKm = &d
	}
	return fe
}

func editable(e models.Event, viewer models.UserSession, created map[string]struct{}) bool {
	if e.OwnerID != "" && e.OwnerID == viewer.ExternalUID {
		return true
	}
	_, ok := created[e.ID]
	return ok
}

func arrivalFor(e models.Event, viewer models.UserSession) *time.Time {
	for _, id := range []string{viewer.Viewer.ID, viewer.ExternalUID} {
		if id == "" {
			continue
		}
		if t, ok := e.ArrivalTimes[id]; ok {
			return &t
		}
	}
	return nil
}

// resolve never fails: unknown IDs become "Guest XXXX" placeholders.
func resolve(id string, role Role, viewer models.UserSession, catalog map[string]models.Friend) Badge {
	if f, ok := catalog[id]; ok {
		return Badge{Friend: f, Role: role}
	}
	if viewer.IsViewer(id) {
		return Badge{Friend: viewer.Viewer, Role: role}
	}
	return Badge{Friend: Placeholder(id), Role: role, Placeholder: true}
}

func Placeholder(id string) models.Friend {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 4 {
		short = short[:4]
	}
	return models.Friend{ID: id, DisplayName: "Guest " + strings.ToUpper(short)}
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsViewer(ids []string, viewer models.UserSession) bool {
	for _, id := range ids {
		if viewer.IsViewer(id) {
			return true
		}
	}
	return false
}

func hasRole(badges []Badge, role Role) bool {
	for _, b := range badges {
		if b.Role == role {
			return true
		}
	}
	return false
}

// sortFeed orders by start date, then distance (unknown last), then ID.
// Past feeds reverse only the date component.
func sortFeed(list []FeedEvent, ascending bool) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Event.StartAt.Equal(b.Event.StartAt) {
			if ascending {
				return a.Event.StartAt.Before(b.Event.StartAt)
			}
			return a.Event.StartAt.After(b.Event.StartAt)
		}
		switch {
		case a.DistanceKm == nil && b.DistanceKm != nil:
			return false
		case a.DistanceKm != nil && b.DistanceKm == nil:
			return true
		case a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm:
			return *a.DistanceKm < *b.DistanceKm
		}
		return a.Event.ID < b.Event.ID
	})
}
