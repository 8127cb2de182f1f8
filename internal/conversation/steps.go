package conversation

import (
	"context"
	"fmt"
	"strconv"

	"telegram-emotion-diary/internal/models"
)

// step describes one question: how to ask it, how to check the answer,
// where to store it and which question comes next.
type step struct {
	prompt   func(s models.Session) models.Prompt
	validate validator
	apply    func(s *models.Session, v any)
	// effect persists data tied to this answer before advancing. On error the state is kept.
	effect func(ctx context.Context, e *Engine, userID int64, s *models.Session) error
	// op names effect for logs.
	op   string
	next nextSelector
}

type nextSelector func(ctx context.Context, e *Engine, userID int64, s *models.Session) (models.State, error)

func always(st models.State) nextSelector {
	return func(context.Context, *Engine, int64, *models.Session) (models.State, error) {
		return st, nil
	}
}

// NeedsCycleDay reports whether the cycle-day question must be asked.
func NeedsCycleDay(gender string, recordedToday bool) bool {
	return gender == CycleTrackingGender && !recordedToday
}

// afterPhone skips the cycle-day question unless the user tracks a cycle and
// has not answered it today. A value recorded today is reused.
func afterPhone(ctx context.Context, e *Engine, userID int64, s *models.Session) (models.State, error) {
	if s.Gender != CycleTrackingGender {
		return models.StateBingeEating, nil
	}
	day, ok, err := e.store.LastCycleDayForToday(ctx, userID)
	if err != nil {
		return models.StateNone, err
	}
	if !NeedsCycleDay(s.Gender, ok) {
		s.Entry.CycleDay = &day
		return models.StateBingeEating, nil
	}
	return models.StateCycleDay, nil
}

func numberOptions(from, to int) []string {
	res := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		res = append(res, strconv.Itoa(i))
	}
	return res
}

func choice(text string, labels []string, columns int) func(models.Session) models.Prompt {
	return func(models.Session) models.Prompt {
		return models.Prompt{Text: text, Options: labels, Columns: columns}
	}
}

func freeText(text string) func(models.Session) models.Prompt {
	return func(models.Session) models.Prompt {
		return models.Prompt{Text: text, RemoveKeyboard: true}
	}
}

func hungerPrompt(s models.Session) models.Prompt {
	n := s.Name
	if n == "" {
		n = defaultName
	}
	return models.Prompt{Text: fmt.Sprintf(textAskHunger, n), Options: numberOptions(1, 10), Columns: 5}
}

func buildSteps() map[models.State]step {
	return map[models.State]step{
		models.StateName: {
			prompt:   freeText(textAskName),
			validate: validName,
			apply:    func(s *models.Session, v any) { s.Name = v.(string) },
			next:     always(models.StateGender),
		},
		models.StateGender: {
			prompt:   choice(textAskGender, []string{genderMale, genderFemale}, 0),
			validate: validGender,
			apply:    func(s *models.Session, v any) { s.Gender = v.(string) },
			op:       "upsert_user",
			effect: func(ctx context.Context, e *Engine, userID int64, s *models.Session) error {
				return e.store.UpsertUser(ctx, &models.User{ID: userID, Name: s.Name, Gender: s.Gender})
			},
			next: always(models.StateHungerBefore),
		},
		models.StateHungerBefore: {
			prompt:   hungerPrompt,
			validate: intInRange(1, 10),
			apply:    func(s *models.Session, v any) { s.Entry.HungerBefore = v.(int) },
			next:     always(models.StateSatietyAfter),
		},
		models.StateSatietyAfter: {
			prompt:   choice(textAskSatiety, numberOptions(1, 10), 5),
			validate: intInRange(1, 10),
			apply:    func(s *models.Session, v any) { s.Entry.SatietyAfter = v.(int) },
			next:     always(models.StateEmotion),
		},
		models.StateEmotion: {
			prompt:   choice(textAskEmotion, emotionLabels, 1),
			validate: validEmotion,
			apply:    func(s *models.Session, v any) { s.Entry.Emotion = v.(string) },
			next:     always(models.StateSleepHours),
		},
		models.StateSleepHours: {
			prompt:   choice(textAskSleep, numberOptions(1, 12), 6),
			validate: sleepHours,
			apply:    func(s *models.Session, v any) { s.Entry.SleepHours = v.(float64) },
			next:     always(models.StateLocation),
		},
		models.StateLocation: {
			prompt:   choice(textAskLocation, locationLabels, 0),
			validate: oneOf(locationLabels),
			apply:    func(s *models.Session, v any) { s.Entry.Location = v.(string) },
			next:     always(models.StateCompany),
		},
		models.StateCompany: {
			prompt:   choice(textAskCompany, companyLabels, 0),
			validate: oneOf(companyLabels),
			apply:    func(s *models.Session, v any) { s.Entry.Company = v.(string) },
			next:     always(models.StatePhone),
		},
		models.StatePhone: {
			prompt:   choice(textAskPhone, phoneLabels, 0),
			validate: oneOf(phoneLabels),
			apply:    func(s *models.Session, v any) { s.Entry.Phone = v.(string) },
			op:       "last_cycle_day",
			next:     afterPhone,
		},
		models.StateCycleDay: {
			prompt:   freeText(textAskCycleDay),
			validate: intInRange(minCycleDay, maxCycleDay),
			apply: func(s *models.Session, v any) {
				day := v.(int)
				s.Entry.CycleDay = &day
			},
			op: "insert_cycle_day",
			effect: func(ctx context.Context, e *Engine, userID int64, s *models.Session) error {
				return e.store.InsertCycleDayRecord(ctx, userID, *s.Entry.CycleDay)
			},
			next: always(models.StateBingeEating),
		},
		models.StateBingeEating: {
			prompt:   choice(textAskBinge, bingeLabels, 2),
			validate: oneOf(bingeLabels),
			apply:    func(s *models.Session, v any) { s.Entry.BingeEating = v.(string) },
			next:     always(models.StateCommit),
		},
	}
}
