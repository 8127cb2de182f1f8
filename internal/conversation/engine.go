// Package conversation drives one diary entry per user from the first question to the stored record.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"telegram-emotion-diary/internal/metrics"
	"telegram-emotion-diary/internal/models"
)

// Store is the persistence the engine needs.
type Store interface {
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	InsertEntry(ctx context.Context, e *models.DiaryEntry) error
	LastCycleDayForToday(ctx context.Context, userID int64) (int, bool, error)
	InsertCycleDayRecord(ctx context.Context, userID int64, day int) error
	ListRecentEntries(ctx context.Context, userID int64, limit int) ([]models.DiaryEntry, error)
}

// Sessions keeps conversations in progress.
type Sessions interface {
	Get(userID int64) (models.Session, bool)
	Set(userID int64, s models.Session)
	Clear(userID int64)
	Len() int
}

type Options struct {
	// Location formats /history timestamps.
	Location     *time.Location
	HistoryLimit int
}

type Engine struct {
	store    Store
	sessions Sessions
	log      *zap.Logger
	steps    map[models.State]step
	loc      *time.Location
	history  int
}

func New(store Store, sessions Sessions, log *zap.Logger, opts Options) *Engine {
	e := &Engine{
		store:    store,
		sessions: sessions,
		log:      log,
		steps:    buildSteps(),
		loc:      opts.Location,
		history:  opts.HistoryLimit,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.history <= 0 {
		e.history = 5
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// Start handles /start: greets a registered user or begins onboarding.
func (e *Engine) Start(ctx context.Context, userID int64) models.Prompt {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return e.persistenceFailure(userID, models.StateNone, "get_user", err, nil)
	}
	if u != nil {
		return models.Prompt{Text: fmt.Sprintf(textWelcomeBack, u.Name)}
	}
	e.setSession(userID, models.Session{State: models.StateName})
	return models.Prompt{Text: textIntro, RemoveKeyboard: true}
}

// Begin handles /meal. Unknown users are asked for their name first,
// registered users go straight to the first diary question.
func (e *Engine) Begin(ctx context.Context, userID int64) models.Prompt {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return e.persistenceFailure(userID, models.StateNone, "get_user", err, nil)
	}
	if u == nil {
		e.setSession(userID, models.Session{State: models.StateName})
		return models.Prompt{Text: textIntroduceFirst, RemoveKeyboard: true}
	}
	s := models.Session{State: models.StateHungerBefore, Name: u.Name, Gender: u.Gender}
	e.setSession(userID, s)
	return e.steps[s.State].prompt(s)
}

// Cancel drops the conversation in progress.
func (e *Engine) Cancel(userID int64) models.Prompt {
	e.sessions.Clear(userID)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))
	return models.Prompt{Text: textCancelled, RemoveKeyboard: true}
}

// Handle processes one answer of the user.
func (e *Engine) Handle(ctx context.Context, userID int64, text string) models.Prompt {
	cur, ok := e.sessions.Get(userID)
	if !ok {
		return models.Prompt{Text: textNoSession}
	}
	st, ok := e.steps[cur.State]
	if !ok {
		e.log.Warn("session in unknown state, dropping",
			zap.Int64("user_id", userID), zap.Stringer("state", cur.State))
		e.sessions.Clear(userID)
		return models.Prompt{Text: textNoSession, RemoveKeyboard: true}
	}

	v, err := st.validate(cur.State, strings.TrimSpace(text))
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(cur.State.String()).Inc()
		p := st.prompt(cur)
		p.Text = err.Error() + "\n\n" + p.Text
		return p
	}

	next := cur
	st.apply(&next, v)

	if st.effect != nil {
		if err := st.effect(ctx, e, userID, &next); err != nil {
			return e.persistenceFailure(userID, cur.State, st.op, err, &cur)
		}
	}

	ns, err := st.next(ctx, e, userID, &next)
	if err != nil {
		return e.persistenceFailure(userID, cur.State, st.op, err, &cur)
	}
	if ns == models.StateCommit {
		return e.commit(ctx, userID, cur, next)
	}

	next.State = ns
	e.setSession(userID, next)
	return e.steps[ns].prompt(next)
}

// commit stores the entry. On failure the session stays on the last question
// so the user can resend the answer.
func (e *Engine) commit(ctx context.Context, userID int64, cur, done models.Session) models.Prompt {
	entry := done.Entry
	entry.UserID = userID
	if err := e.store.InsertEntry(ctx, &entry); err != nil {
		return e.persistenceFailure(userID, cur.State, "insert_entry", err, &cur)
	}
	metrics.EntriesCommitted.Inc()
	e.sessions.Clear(userID)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))

	e.log.Info("diary entry saved",
		zap.Int64("user_id", userID), zap.Int64("entry_id", entry.ID))

	n := done.Name
	u, err := e.store.GetUser(ctx, userID)
	switch {
	case err != nil:
		e.log.Warn("load user for confirmation", zap.Int64("user_id", userID), zap.Error(err))
	case u != nil:
		n = u.Name
	}
	if n == "" {
		n = defaultName
	}
	return models.Prompt{Text: fmt.Sprintf(textSaved, n), RemoveKeyboard: true}
}

// History lists the latest entries of the user.
func (e *Engine) History(ctx context.Context, userID int64) models.Prompt {
	entries, err := e.store.ListRecentEntries(ctx, userID, e.history)
	if err != nil {
		return e.persistenceFailure(userID, models.StateNone, "list_entries", err, nil)
	}
	if len(entries) == 0 {
		return models.Prompt{Text: textHistoryEmpty}
	}

	var b strings.Builder
	b.WriteString(textHistoryHeader)
	for _, en := range entries {
		b.WriteString("\n\n")
		b.WriteString(formatEntry(en, e.loc))
	}
	return models.Prompt{Text: b.String()}
}

func formatEntry(en models.DiaryEntry, loc *time.Location) string {
	s := fmt.Sprintf("%s — голод %d, сытость %d, эмоция: %s, сон %s ч, %s, %s, %s",
		en.CreatedAt.In(loc).Format("02.01 15:04"),
		en.HungerBefore, en.SatietyAfter, en.Emotion,
		formatHours(en.SleepHours), en.Location, en.Company, en.Phone)
	if en.CycleDay != nil {
		s += fmt.Sprintf(", день цикла %d", *en.CycleDay)
	}
	return s + ", переедание: " + en.BingeEating
}

func formatHours(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func (e *Engine) setSession(userID int64, s models.Session) {
	e.sessions.Set(userID, s)
	metrics.ActiveSessions.Set(float64(e.sessions.Len()))
}

// persistenceFailure keeps the session untouched and re-asks the current question when there is one.
func (e *Engine) persistenceFailure(userID int64, state models.State, op string, err error, cur *models.Session) models.Prompt {
	metrics.PersistenceFailures.WithLabelValues(op).Inc()
	e.log.Error("persistence failure",
		zap.Int64("user_id", userID),
		zap.Stringer("state", state),
		zap.String("op", op),
		zap.Error(err),
	)
	if cur == nil {
		return models.Prompt{Text: textTemporaryFail}
	}
	p := e.steps[cur.State].prompt(*cur)
	p.Text = textTemporaryFail + "\n\n" + p.Text
	return p
}

// State returns the question the user is currently answering.
func (e *Engine) State(userID int64) models.State {
	s, ok := e.sessions.Get(userID)
	if !ok {
		return models.StateNone
	}
	return s.State
}
