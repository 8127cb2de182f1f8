package models

// State is the conversation step waiting for an answer.
type State int

const (
	StateNone State = iota
	StateName
	StateGender
	StateHungerBefore
	StateSatietyAfter
	StateEmotion
	StateSleepHours
	StateLocation
	StateCompany
	StatePhone
	StateCycleDay
	StateBingeEating
	StateCommit
)

var stateNames = map[State]string{
	StateNone:         "none",
	StateName:         "name",
	StateGender:       "gender",
	StateHungerBefore: "hunger_before",
	StateSatietyAfter: "satiety_after",
	StateEmotion:      "emotion",
	StateSleepHours:   "sleep_hours",
	StateLocation:     "location",
	StateCompany:      "company",
	StatePhone:        "phone",
	StateCycleDay:     "cycle_day",
	StateBingeEating:  "binge_eating",
	StateCommit:       "commit",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Session is the in-memory progress of one diary entry.
type Session struct {
	State  State
	Name   string
	Gender string
	Entry  DiaryEntry
}
