package feed

type Op string

const (
	OpLoad   Op = "load feed"
	OpCreate Op = "create event"
	OpUpdate Op = "update event"
	OpDelete Op = "delete event"
	OpRSVP   Op = "rsvp"
	OpShare  Op = "share event"
)

var messages = map[Op]struct {
	success string
	failure string
}{
	OpLoad:   {"", "Couldn't load events. Check your connection and try again."},
	OpCreate: {"Event created", "Couldn't create the event. Please try again."},
	OpUpdate: {"Event updated", "Couldn't save your changes. Please try again."},
	OpDelete: {"Event deleted", "Couldn't delete the event. Please try again."},
	OpRSVP:   {"RSVP saved", "Couldn't update your RSVP. Please try again."},
	OpShare:  {"Invites sent", "Couldn't send the invites. Please try again."},
}
