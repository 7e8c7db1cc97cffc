package feed

import (
	"context"
	"log"
	"sync"

	"backend-eventhub/internal/models"
	"backend-eventhub/internal/session"
	"backend-eventhub/internal/stream"

	"github.com/robfig/cron/v3"
)

type ListenFunc func(topic string, handle func([]byte)) (stop func())

type RegistryConfig struct {
	Deps    Deps
	Options Options
	// Listen subscribes to moderation changes. Nil disables the listener.
	Listen ListenFunc
	// Reauth is bound per viewer into Deps.Reauth.
	Reauth func(ctx context.Context, uid string) (models.UserSession, error)
	// Schedule is a cron spec for background reloads. Empty disables them.
	Schedule string
}

// Registry keeps one Service per signed-in viewer, keyed by external uid.
type Registry struct {
	cfg RegistryConfig

	mu      sync.Mutex
	entries map[string]*entry
	cron    *cron.Cron
}

type entry struct {
	svc      *Service
	viewerID string
	stop     func()
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{cfg: cfg, entries: map[string]*entry{}}
}

// HandleSessionChange is registered with session.Manager.OnChange.
func (r *Registry) HandleSessionChange(ch session.Change) {
	uid := ch.Session.ExternalUID
	switch ch.Kind {
	case session.SignedIn:
		svc := r.Attach(ch.Session)
		go func() {
			if err := svc.LoadFeed(context.Background()); err != nil {
				log.Printf("initial feed load for %s failed: %v", uid, err)
			}
		}()
	case session.SignedOut:
		r.Detach(uid)
	case session.Refreshed:
		if svc, ok := r.Get(uid); ok {
			svc.SetSession(ch.Session)
		}
	}
}

// Attach creates the viewer's service, replacing any previous one.
func (r *Registry) Attach(sess models.UserSession) *Service {
	uid := sess.ExternalUID
	deps := r.cfg.Deps
	if r.cfg.Reauth != nil {
		deps.Reauth = func(ctx context.Context) (models.UserSession, error) {
			return r.cfg.Reauth(ctx, uid)
		}
	}
	svc := NewService(sess, deps, r.cfg.Options)

	e := &entry{svc: svc, viewerID: sess.Viewer.ID, stop: func() {}}
	if r.cfg.Listen != nil {
		e.stop = r.cfg.Listen(stream.ModerationTopic(uid), func([]byte) {
			if err := svc.LoadFeed(context.Background()); err != nil {
				log.Printf("feed reload after moderation change for %s failed: %v", uid, err)
			}
		})
	}

	r.mu.Lock()
	prev := r.entries[uid]
	r.entries[uid] = e
	r.mu.Unlock()

	if prev != nil {
		r.release(prev, prev.viewerID != e.viewerID)
	}
	return svc
}

func (r *Registry) Detach(uid string) {
	r.mu.Lock()
	e := r.entries[uid]
	delete(r.entries, uid)
	r.mu.Unlock()

	if e != nil {
		r.release(e, true)
	}
}

func (r *Registry) Get(uid string) (*Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[uid]
	if !ok {
		return nil, false
	}
	return e.svc, true
}

func (r *Registry) ReloadAll(ctx context.Context) {
	r.mu.Lock()
	services := make([]*Service, 0, len(r.entries))
	for _, e := range r.entries {
		services = append(services, e.svc)
	}
	r.mu.Unlock()

	for _, svc := range services {
		if err := svc.LoadFeed(ctx); err != nil {
			log.Printf("scheduled reload for %s failed: %v", svc.Session().ExternalUID, err)
		}
	}
}

func (r *Registry) Start() error {
	if r.cfg.Schedule == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		r.ReloadAll(context.Background())
	}); err != nil {
		return err
	}
	c.Start()

	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()
	return nil
}

// Stop halts scheduled reloads and releases every viewer.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	entries := r.entries
	r.entries = map[string]*entry{}
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, e := range entries {
		r.release(e, true)
	}
}

func (r *Registry) release(e *entry, forget bool) {
	e.stop()
	e.svc.Close()
	if forget && r.cfg.Deps.Filter != nil {
		r.cfg.Deps.Filter.Forget(e.viewerID)
	}
}
