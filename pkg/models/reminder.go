package models

const ReminderStatusSent = "sent"

type RecipientRole string

const (
	RecipientHost        RecipientRole = "host"
	RecipientParticipant RecipientRole = "participant"
)

type DeliveryOutcome string

const (
	DeliverySent    DeliveryOutcome = "sent"
	DeliveryFailed  DeliveryOutcome = "failed"
	DeliverySkipped DeliveryOutcome = "skipped"
)

// RecipientResult records what happened to one reminder recipient.
type RecipientResult struct {
	Email   string
	Role    RecipientRole
	Outcome DeliveryOutcome
	Err     error
}

type MeetingResult struct {
	MeetingID  string            `json:"meetingId"`
	Title      string            `json:"title"`
	Status     string            `json:"status"`
	Recipients []RecipientResult `json:"-"`
	// Err holds bookkeeping failures (notification insert, flag updates) of this meeting.
	Err error `json:"-"`
}

type ReminderReport struct {
	Success   bool            `json:"success"`
	Processed int             `json:"processed"`
	Results   []MeetingResult `json:"results"`
}

// Failed counts recipients whose delivery attempt errored.
func (r ReminderReport) Failed() int {
	var n int
	for _, m := range r.Results {
		for _, rc := range m.Recipients {
			if rc.Outcome == DeliveryFailed {
				n++
			}
		}
	}
	return n
}

// StoreFailures counts meetings whose bookkeeping writes failed.
func (r ReminderReport) StoreFailures() int {
	var n int
	for _, m := range r.Results {
		if m.Err != nil {
			n++
		}
	}
	return n
}
