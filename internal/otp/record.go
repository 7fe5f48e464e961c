package otp

import "time"

// Record is the one outstanding challenge for a recipient.
type Record struct {
	Recipient string    `json:"recipient"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// Attempts counts verification attempts charged against Code.
	Attempts int `json:"attempts"`
}

// Expired reports whether the record can no longer be matched at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Profile carries the names used to personalise the delivered message.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Status is a read-only snapshot used by countdown and attempts displays.
type Status struct {
	Valid             bool `json:"valid"`
	RemainingSeconds  int  `json:"remaining_seconds"`
	RemainingAttempts int  `json:"remaining_attempts"`
}
