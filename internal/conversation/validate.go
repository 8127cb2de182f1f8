package conversation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"telegram-emotion-diary/internal/models"
)

const (
	maxNameLen    = 64
	maxEmotionLen = 100

	minCycleDay = 1
	maxCycleDay = 60
)

// ValidationError rejects an answer. The engine re-asks the same question.
type ValidationError struct {
	State  models.State
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type validator func(state models.State, raw string) (any, error)

func invalid(state models.State, format string, args ...any) error {
	return &ValidationError{State: state, Reason: fmt.Sprintf(format, args...)}
}

func intInRange(lo, hi int) validator {
	return func(state models.State, raw string) (any, error) {
		v, err := strconv.Atoi(raw)
		if err != nil || v < lo || v > hi {
			return nil, invalid(state, errNumberRange, lo, hi)
		}
		return v, nil
	}
}

// sleepHours accepts a comma as decimal separator.
func sleepHours(state models.State, raw string) (any, error) {
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 24 {
		return nil, invalid(state, errSleepHours)
	}
	return v, nil
}

// oneOf matches case-insensitively and returns the canonical label.
func oneOf(labels []string) validator {
	return func(state models.State, raw string) (any, error) {
		for _, l := range labels {
			if strings.EqualFold(raw, l) {
				return l, nil
			}
		}
		return nil, invalid(state, errChooseOption)
	}
}

func validGender(state models.State, raw string) (any, error) {
	v, err := oneOf([]string{genderMale, genderFemale})(state, raw)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(v.(string)), nil
}

func validName(state models.State, raw string) (any, error) {
	if raw == "" {
		return nil, invalid(state, errEmptyName)
	}
	if utf8.RuneCountInString(raw) > maxNameLen {
		return nil, invalid(state, errNameTooLong, maxNameLen)
	}
	return raw, nil
}

// validEmotion prefers a known label but keeps short free text as typed.
func validEmotion(state models.State, raw string) (any, error) {
	if v, err := oneOf(emotionLabels)(state, raw); err == nil {
		return v, nil
	}
	if raw == "" || utf8.RuneCountInString(raw) > maxEmotionLen {
		return nil, invalid(state, errEmotionFormat, maxEmotionLen)
	}
	return raw, nil
}
