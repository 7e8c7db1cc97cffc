package visibility

import "time"

// HiddenRecord is one "hide this event" entry. A nil HiddenAt never expires.
type HiddenRecord struct {
	EventID  string     `json:"event_id"`
	HiddenAt *time.Time `json:"hidden_at,omitempty"`
}

type Sets struct {
	Hidden  map[string]struct{}
	Blocked map[string]struct{}
}

func (s Sets) IsHidden(eventID string) bool {
	_, ok := s.Hidden[eventID]
	return ok
}

func (s Sets) IsBlocked(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := s.Blocked[userID]
	return ok
}

func (s Sets) clone() Sets {
	return Sets{Hidden: cloneSet(s.Hidden), Blocked: cloneSet(s.Blocked)}
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

type ReportKind string

const (
	ReportEvent   ReportKind = "event"
	ReportComment ReportKind = "comment"
)

type Report struct {
	ID         string     `json:"id"`
	ReporterID string     `json:"reporter_id"`
	Kind       ReportKind `json:"kind"`
	TargetID   string     `json:"target_id"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
}
