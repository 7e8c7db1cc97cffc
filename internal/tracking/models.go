package tracking

import (
	"time"

	"backend-eventhub/internal/models"
)

// Ping is one location report from a viewer's device.
type Ping struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Update struct {
	Location   models.Coordinate `json:"location"`
	RecordedAt time.Time         `json:"recorded_at"`
	MovedKm    *float64          `json:"moved_km,omitempty"`
	Reloaded   bool              `json:"reloaded"`
}
