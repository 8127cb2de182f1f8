package models

import "time"

// User is a registered diary owner. ID is the telegram user id.
type User struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Gender    string    `db:"gender"     json:"gender"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DiaryEntry is one completed meal record. Immutable once stored.
type DiaryEntry struct {
	ID           int64     `db:"id"            json:"id"`
	UserID       int64     `db:"user_id"       json:"user_id"`
	HungerBefore int       `db:"hunger_before" json:"hunger_before"` // 1..10
	SatietyAfter int       `db:"satiety_after" json:"satiety_after"` // 1..10
	Emotion      string    `db:"emotion"       json:"emotion"`
	SleepHours   float64   `db:"sleep_hours"   json:"sleep_hours"`
	Location     string    `db:"location"      json:"location"`
	Company      string    `db:"company"       json:"company"`
	Phone        string    `db:"phone"         json:"phone"`
	CycleDay     *int      `db:"cycle_day"     json:"cycle_day,omitempty"` // nil -> not applicable
	BingeEating  string    `db:"binge_eating"  json:"binge_eating"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// Prompt is an outgoing question with the answers the transport should offer.
type Prompt struct {
	Text    string
	Options []string // empty -> free text
	Columns int      // options per keyboard row, 0 -> all in one row
	// RemoveKeyboard hides any reply keyboard left from a previous question.
	RemoveKeyboard bool
}
