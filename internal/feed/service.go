package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"backend-eventhub/internal/backend"
	"backend-eventhub/internal/models"
	"backend-eventhub/internal/shared/geo"
	"backend-eventhub/internal/stream"
	"backend-eventhub/internal/visibility"
	"backend-eventhub/internal/widget"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNotEditable   = errors.New("event is not editable by this viewer")
	ErrInvalidDraft  = errors.New("invalid event draft")
	ErrInvalidStatus = errors.New("rsvp status must be going or declined")
	ErrNoInvitees    = errors.New("no friends to invite")
)

type Notifier interface {
	Broadcast(topic string, payload []byte)
}

type WidgetWriter interface {
	Save(ctx context.Context, viewerUID string, snap widget.Snapshot) error
}

type Deps struct {
	Port     backend.Port
	Filter   *visibility.Filter
	Notifier Notifier
	Widget   WidgetWriter
	Now      func() time.Time
	// Reauth mints a fresh session after a permission failure. Nil disables
	// the retry.
	Reauth func(ctx context.Context) (models.UserSession, error)
}

// Service owns one viewer's feed. All state changes happen under mu and end
// with a published snapshot. opMu orders mutations and loads so a rollback
// never discards another operation's result.
type Service struct {
	deps Deps
	opts Options

	opMu sync.Mutex

	mu          sync.Mutex
	session     models.UserSession
	events      []models.Event
	friends     []models.Friend
	sets        visibility.Sets
	created     map[string]struct{}
	attending   map[string]struct{}
	criteria    Criteria
	showAllPast bool
	loading     bool
	closed      bool
	snap        Snapshot
	subs        map[int]chan Snapshot
	nextSub     int

	widgetWrites sync.WaitGroup
}

func NewService(sess models.UserSession, deps Deps, opts Options) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.PastPageSize <= 0 {
		opts.PastPageSize = DefaultOptions().PastPageSize
	}
	s := &Service{
		deps:      deps,
		opts:      opts,
		session:   sess,
		created:   map[string]struct{}{},
		attending: map[string]struct{}{},
		subs:      map[int]chan Snapshot{},
	}
	s.rebuildLocked()
	return s
}

func (s *Service) Session() models.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Service) Friends() []models.Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Friend(nil), s.friends...)
}

// Subscribe returns a channel that always holds the latest snapshot.
// Intermediate snapshots are dropped for slow readers.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Service) SetSession(sess models.UserSession) {
	s.mu.Lock()
	s.session = sess
	snap := s.rebuildLocked()
	s.mu.Unlock()
	s.broadcast(snap)
}

// SetCriteria only reruns the filter pass.
func (s *Service) SetCriteria(c Criteria) Snapshot {
	s.mu.Lock()
	s.criteria = c
	snap := s.snap
	snap.Version++
	snap.Criteria = c
	snap.FilteredUpcoming = ApplyCriteria(snap.Upcoming, c, s.opts)
	s.publishLocked(snap)
	s.mu.Unlock()
	s.broadcast(snap)
	return snap
}

func (s *Service) SetShowAllPast(showAll bool) Snapshot {
	s.mu.Lock()
	s.showAllPast = showAll
	snap := s.snap
	snap.Version++
	snap.ShowAllPast = showAll
	snap.VisiblePast = PastPage(snap.Past, showAll, s.opts)
	s.publishLocked(snap)
	s.mu.Unlock()
	s.broadcast(snap)
	return snap
}

func (s *Service) DismissNotice() {
	s.mu.Lock()
	snap := s.noticeLocked(nil)
	s.mu.Unlock()
	s.broadcast(snap)
}

// LoadFeed fetches, filters and republishes the feed. A call made while
// another load is running returns nil without doing anything.
func (s *Service) LoadFeed(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	feed, sess, err := s.fetch(ctx, sess)
	if err != nil {
		s.fail(OpLoad, err)
		return err
	}

	var sets visibility.Sets
	if s.deps.Filter != nil {
		sets = s.deps.Filter.Compute(ctx, sess.Viewer.ID)
	}

	s.mu.Lock()
	s.events = mergeEvents(feed.Events, s.events)
	s.reconcileLocked(feed.Events, sess)
	s.friends = feed.Friends
	s.sets = sets
	snap := s.rebuildLocked()
	s.mu.Unlock()

	s.broadcast(snap)
	s.saveWidget(sess, snap, feed.Friends)
	return nil
}

func (s *Service) fetch(ctx context.Context, sess models.UserSession) (backend.Feed, models.UserSession, error) {
	feed, err := s.deps.Port.FetchFeed(ctx, sess, sess.Location)
	if err == nil || s.deps.Reauth == nil || !errors.Is(err, backend.ErrPermission) {
		return feed, sess, err
	}

	next, rerr := s.deps.Reauth(ctx)
	if rerr != nil {
		log.Printf("re-authentication failed for %s: %v", sess.ExternalUID, rerr)
		return feed, sess, err
	}
	s.mu.Lock()
	s.session = next
	s.mu.Unlock()

	feed, err = s.deps.Port.FetchFeed(ctx, next, next.Location)
	return feed, next, err
}

// mergeEvents keeps the remote list authoritative. Local-origin events the
// remote does not know about survive, and invites added locally to a
// local-origin event are carried over.
func mergeEvents(remote, current []models.Event) []models.Event {
	out := models.CloneEvents(remote)
	known := make(map[string]int, len(out)*2)
	for i, e := range out {
		known[e.ID] = i
		if e.BackendID != "" {
			known[e.BackendID] = i
		}
	}

	for _, e := range current {
		if e.Origin != models.OriginLocal {
			continue
		}
		i, ok := known[e.ID]
		if !ok && e.BackendID != "" {
			i, ok = known[e.BackendID]
		}
		if !ok {
			out = append(out, e.Clone())
			continue
		}
		out[i].SharedInviteFriendIDs = dedup(append(out[i].SharedInviteFriendIDs, e.SharedInviteFriendIDs...))
	}
	return out
}

func (s *Service) reconcileLocked(remote []models.Event, sess models.UserSession) {
	for _, e := range remote {
		if containsViewer(e.AttendingFriendIDs, sess) {
			s.attending[e.ID] = struct{}{}
		} else {
			delete(s.attending, e.ID)
		}
	}
	for _, e := range s.events {
		if e.OwnerID != "" && e.OwnerID == sess.ExternalUID {
			s.created[e.ID] = struct{}{}
		}
	}
}

func (s *Service) Create(ctx context.Context, d Draft) (string, error) {
	if err := validateDraft(d); err != nil {
		return "", err
	}
	id := uuid.NewString()
	origin := models.OriginRemote
	if s.deps.Port.Kind() == backend.KindLocal {
		origin = models.OriginLocal
	}

	err := s.mutate(ctx, OpCreate, func(sess models.UserSession) (remoteCall, error) {
		privacy := d.Privacy
		if privacy == "" {
			privacy = models.PrivacyPublic
		}
		e := models.Event{
			ID:                    id,
			Origin:                origin,
			Title:                 d.Title,
			Description:           d.Description,
			Location:              d.Location,
			StartAt:               d.StartAt,
			EndAt:                 d.EndAt,
			Coordinate:            d.Coordinate,
			Privacy:               privacy,
			OwnerID:               sess.ExternalUID,
			OwnerProfileID:        sess.Viewer.ID,
			AttendingFriendIDs:    []string{sess.Viewer.ID},
			SharedInviteFriendIDs: dedup(d.SharedInviteFriendIDs),
			Categories:            append([]string(nil), d.Categories...),
			ImageURL:              d.ImageURL,
		}
		s.events = append([]models.Event{e}, s.events...)
		s.created[id] = struct{}{}
		s.attending[id] = struct{}{}

		req := backend.CreateRequest{
			ID:          id,
			Owner:       sess.Viewer,
			OwnerUID:    sess.ExternalUID,
			Title:       e.Title,
			Description: e.Description,
			StartAt:     e.StartAt,
			EndAt:       e.EndAt,
			Location:    e.Location,
			Coordinate:  e.Coordinate,
			Privacy:     e.Privacy,
			Categories:  e.Categories,
			ImageURL:    e.ImageURL,
		}
		return func(ctx context.Context) error {
			remoteID, err := s.deps.Port.CreateEvent(ctx, req)
			if err != nil {
				return err
			}
			if remoteID != "" && remoteID != id {
				s.mu.Lock()
				s.created[remoteID] = struct{}{}
				s.mu.Unlock()
			}
			return nil
		}, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) Update(ctx context.Context, eventID string, d Draft) error {
	if err := validateDraft(d); err != nil {
		return err
	}
	return s.mutate(ctx, OpUpdate, func(sess models.UserSession) (remoteCall, error) {
		i, err := s.editableLocked(eventID, sess)
		if err != nil {
			return nil, err
		}
		e := &s.events[i]
		e.Title = d.Title
		e.Location = d.Location
		e.StartAt = d.StartAt
		e.EndAt = d.EndAt
		e.Coordinate = d.Coordinate
		if d.Privacy != "" {
			e.Privacy = d.Privacy
		}
		if d.SharedInviteFriendIDs != nil {
			e.SharedInviteFriendIDs = dedup(d.SharedInviteFriendIDs)
		}
		if d.Categories != nil {
			e.Categories = append([]string(nil), d.Categories...)
		}

		req := backend.UpdateRequest{
			EventID:               e.ID,
			Title:                 e.Title,
			Location:              e.Location,
			StartAt:               e.StartAt,
			EndAt:                 e.EndAt,
			Coordinate:            e.Coordinate,
			Privacy:               e.Privacy,
			SharedInviteFriendIDs: append([]string(nil), e.SharedInviteFriendIDs...),
			Categories:            append([]string(nil), e.Categories...),
		}
		return func(ctx context.Context) error {
			return s.deps.Port.UpdateEvent(ctx, req)
		}, nil
	})
}

func (s *Service) Delete(ctx context.Context, eventID string, hard bool) error {
	return s.mutate(ctx, OpDelete, func(sess models.UserSession) (remoteCall, error) {
		i, err := s.editableLocked(eventID, sess)
		if err != nil {
			return nil, err
		}
		s.events = append(s.events[:i:i], s.events[i+1:]...)
		delete(s.attending, eventID)
		return func(ctx context.Context) error {
			return s.deps.Port.DeleteEvent(ctx, eventID, hard)
		}, nil
	})
}

func (s *Service) RSVP(ctx context.Context, eventID string, status backend.RSVPStatus, arrival *time.Time) error {
	if status != backend.RSVPGoing && status != backend.RSVPDeclined {
		return ErrInvalidStatus
	}
	return s.mutate(ctx, OpRSVP, func(sess models.UserSession) (remoteCall, error) {
		i := s.indexLocked(eventID)
		if i < 0 {
			return nil, ErrEventNotFound
		}
		e := &s.events[i]
		if status == backend.RSVPGoing {
			if !containsViewer(e.AttendingFriendIDs, sess) {
				e.AttendingFriendIDs = append(e.AttendingFriendIDs, sess.Viewer.ID)
			}
			if arrival != nil {
				if e.ArrivalTimes == nil {
					e.ArrivalTimes = map[string]time.Time{}
				}
				e.ArrivalTimes[sess.Viewer.ID] = *arrival
			}
			s.attending[eventID] = struct{}{}
		} else {
			kept := e.AttendingFriendIDs[:0:0]
			for _, id := range e.AttendingFriendIDs {
				if !sess.IsViewer(id) {
					kept = append(kept, id)
				}
			}
			e.AttendingFriendIDs = kept
			delete(e.ArrivalTimes, sess.Viewer.ID)
			delete(s.attending, eventID)
		}

		req := backend.RSVPRequest{
			EventID:   e.ID,
			BackendID: e.BackendID,
			UserID:    sess.Viewer.ID,
			Status:    status,
			Arrival:   arrival,
		}
		return func(ctx context.Context) error {
			return s.deps.Port.RSVP(ctx, req)
		}, nil
	})
}

// Share invites friends to an event. Local-origin events the viewer can
// edit are updated in place with no backend call.
func (s *Service) Share(ctx context.Context, eventID string, to []models.Friend) error {
	if len(to) == 0 {
		return ErrNoInvitees
	}
	return s.mutate(ctx, OpShare, func(sess models.UserSession) (remoteCall, error) {
		i := s.indexLocked(eventID)
		if i < 0 {
			return nil, ErrEventNotFound
		}
		e := &s.events[i]
		ids := make([]string, 0, len(to))
		for _, f := range to {
			ids = append(ids, f.ID)
		}
		e.SharedInviteFriendIDs = dedup(append(e.SharedInviteFriendIDs, ids...))

		if e.Origin == models.OriginLocal && editable(*e, sess, s.created) {
			return nil, nil
		}
		from := sess.Viewer
		recipients := append([]models.Friend(nil), to...)
		return func(ctx context.Context) error {
			return s.deps.Port.SendInvite(ctx, eventID, from, recipients)
		}, nil
	})
}

// Close stops publishing and waits for pending widget writes.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	s.widgetWrites.Wait()
}

type remoteCall func(ctx context.Context) error

type savedState struct {
	events    []models.Event
	created   map[string]struct{}
	attending map[string]struct{}
}

// mutate applies a change optimistically, calls the backend, and either
// reloads on success or restores the saved state on failure.
func (s *Service) mutate(ctx context.Context, op Op, apply func(sess models.UserSession) (remoteCall, error)) error {
	called, err := s.mutateOnce(ctx, op, apply)
	if err == nil && called {
		_ = s.LoadFeed(ctx)
	}
	return err
}

// mutateOnce holds opMu from apply until the outcome is settled.
func (s *Service) mutateOnce(ctx context.Context, op Op, apply func(sess models.UserSession) (remoteCall, error)) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	saved := savedState{
		events:    models.CloneEvents(s.events),
		created:   cloneSet(s.created),
		attending: cloneSet(s.attending),
	}
	call, err := apply(s.session)
	if err != nil {
		s.restoreLocked(saved)
		s.mu.Unlock()
		return false, err
	}
	snap := s.rebuildLocked()
	s.mu.Unlock()
	s.broadcast(snap)

	if call != nil {
		if err := call(ctx); err != nil {
			log.Printf("%s failed: %v", op, err)
			s.mu.Lock()
			s.restoreLocked(saved)
			s.rebuildLocked()
			snap := s.noticeLocked(&Notice{Kind: NoticeError, Text: messages[op].failure})
			s.mu.Unlock()
			s.broadcast(snap)
			return true, err
		}
	}

	s.mu.Lock()
	snap = s.noticeLocked(&Notice{Kind: NoticeSuccess, Text: messages[op].success})
	s.mu.Unlock()
	s.broadcast(snap)
	return call != nil, nil
}

func (s *Service) fail(op Op, err error) {
	if backend.IsTransientStream(err) {
		log.Printf("%s interrupted: %v", op, err)
		return
	}
	log.Printf("%s failed: %v", op, err)
	s.mu.Lock()
	snap := s.noticeLocked(&Notice{Kind: NoticeError, Text: messages[op].failure})
	s.mu.Unlock()
	s.broadcast(snap)
}

func (s *Service) restoreLocked(saved savedState) {
	s.events = saved.events
	s.created = saved.created
	s.attending = saved.attending
}

func (s *Service) indexLocked(eventID string) int {
	for i, e := range s.events {
		if e.ID == eventID || (e.BackendID != "" && e.BackendID == eventID) {
			return i
		}
	}
	return -1
}

func (s *Service) editableLocked(eventID string, sess models.UserSession) (int, error) {
	i := s.indexLocked(eventID)
	if i < 0 {
		return -1, ErrEventNotFound
	}
	if !editable(s.events[i], sess, s.created) {
		return -1, ErrNotEditable
	}
	return i, nil
}

func (s *Service) rebuildLocked() Snapshot {
	res := Rebuild(Input{
		Events:     s.events,
		Friends:    s.friends,
		Viewer:     s.session,
		Visibility: s.sets,
		Created:    s.created,
		Attending:  s.attending,
		Now:        s.deps.Now(),
	})
	snap := Snapshot{
		Version:          s.snap.Version + 1,
		Upcoming:         res.Upcoming,
		FilteredUpcoming: ApplyCriteria(res.Upcoming, s.criteria, s.opts),
		Past:             res.Past,
		VisiblePast:      PastPage(res.Past, s.showAllPast, s.opts),
		ShowAllPast:      s.showAllPast,
		Criteria:         s.criteria,
		Notice:           s.snap.Notice,
	}
	s.publishLocked(snap)
	return snap
}

// noticeLocked replaces the single visible notice.
func (s *Service) noticeLocked(n *Notice) Snapshot {
	snap := s.snap
	snap.Version++
	snap.Notice = n
	s.publishLocked(snap)
	return snap
}

func (s *Service) publishLocked(snap Snapshot) {
	s.snap = snap
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Service) broadcast(snap Snapshot) {
	if s.deps.Notifier == nil {
		return
	}
	s.mu.Lock()
	uid := s.session.ExternalUID
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("encode feed snapshot: %v", err)
		return
	}
	s.deps.Notifier.Broadcast(stream.FeedTopic(uid), payload)
}

func (s *Service) saveWidget(sess models.UserSession, snap Snapshot, friends []models.Friend) {
	if s.deps.Widget == nil {
		return
	}
	events := make([]models.Event, 0, len(snap.Upcoming))
	for _, fe := range snap.Upcoming {
		events = append(events, fe.Event.Clone())
	}
	ws := widget.Snapshot{
		Events:      events,
		Friends:     append([]models.Friend(nil), friends...),
		CurrentUser: sess.Viewer,
		SavedAt:     s.deps.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.widgetWrites.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.widgetWrites.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Widget.Save(ctx, sess.ExternalUID, ws); err != nil {
			log.Printf("widget snapshot write failed for %s: %v", sess.ExternalUID, err)
		}
	}()
}

func validateDraft(d Draft) error {
	if strings.TrimSpace(d.Title) == "" || d.StartAt.IsZero() {
		return ErrInvalidDraft
	}
	if !d.EndAt.IsZero() && d.EndAt.Before(d.StartAt) {
		return ErrInvalidDraft
	}
	if d.Coordinate != nil && !geo.Valid(d.Coordinate.Lat, d.Coordinate.Lng) {
		return ErrInvalidDraft
	}
	return nil
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
