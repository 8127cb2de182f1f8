package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-emotion-diary/internal/models"
	"telegram-emotion-diary/internal/session"
	"telegram-emotion-diary/internal/storage"
)

// flakyStore injects failures in front of a real database.
type flakyStore struct {
	*storage.DB
	upsertErr error
	insertErr error
}

func (f *flakyStore) UpsertUser(ctx context.Context, u *models.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.DB.UpsertUser(ctx, u)
}

func (f *flakyStore) InsertEntry(ctx context.Context, e *models.DiaryEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.DB.InsertEntry(ctx, e)
}

type fixture struct {
	db       *storage.DB
	store    *flakyStore
	sessions *session.Store
	engine   *Engine
	clock    *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "diary.db"), storage.Options{
		MaxOpenConns: 4,
		QueryTimeout: 5 * time.Second,
		Clock:        clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &flakyStore{DB: db}
	sessions := session.NewStore()
	return &fixture{
		db:       db,
		store:    store,
		sessions: sessions,
		engine:   New(store, sessions, nil, Options{}),
		clock:    clock,
	}
}

func (f *fixture) answer(t *testing.T, userID int64, answers ...string) models.Prompt {
	t.Helper()
	var p models.Prompt
	for _, a := range answers {
		before := f.engine.State(userID)
		p = f.engine.Handle(context.Background(), userID, a)
		require.NotEqual(t, before, f.engine.State(userID), "answer %q did not advance from %s: %s", a, before, p.Text)
	}
	return p
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func (f *fixture) entries(t *testing.T, userID int64) []models.DiaryEntry {
	t.Helper()
	res, err := f.db.ListRecentEntries(context.Background(), userID, 100)
	require.NoError(t, err)
	return res
}

func TestEngine_FullFlowWithCycleDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.engine.Start(ctx, 42)
	assert.Equal(t, textIntro, p.Text)
	assert.Equal(t, models.StateName, f.engine.State(42))

	p = f.answer(t, 42, "Anna")
	assert.Equal(t, textAskGender, p.Text)
	assert.Equal(t, []string{genderMale, genderFemale}, p.Options)

	p = f.answer(t, 42, "Женский")
	assert.Equal(t, fmt.Sprintf(textAskHunger, "Anna"), p.Text)
	assert.Len(t, p.Options, 10)
	u, err := f.db.GetUser(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Anna", u.Name)
	assert.Equal(t, CycleTrackingGender, u.Gender)

	p = f.answer(t, 42, "3", "7", "тревога", "6.5", "дома", "один/одна", "без телефона")
	assert.Equal(t, textAskCycleDay, p.Text)
	assert.True(t, p.RemoveKeyboard)
	assert.Equal(t, models.StateCycleDay, f.engine.State(42))

	p = f.answer(t, 42, "14")
	assert.Equal(t, textAskBinge, p.Text)
	assert.Equal(t, bingeLabels, p.Options)

	p = f.answer(t, 42, "Нет")
	assert.Equal(t, fmt.Sprintf(textSaved, "Anna"), p.Text)
	assert.True(t, p.RemoveKeyboard)

	_, ok := f.sessions.Get(42)
	assert.False(t, ok, "session must be cleared after commit")

	got := f.entries(t, 42)
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, int64(42), e.UserID)
	assert.Equal(t, 3, e.HungerBefore)
	assert.Equal(t, 7, e.SatietyAfter)
	assert.Equal(t, "тревога", e.Emotion)
	assert.InDelta(t, 6.5, e.SleepHours, 1e-9)
	assert.Equal(t, "дома", e.Location)
	assert.Equal(t, "один/одна", e.Company)
	assert.Equal(t, "без телефона", e.Phone)
	require.NotNil(t, e.CycleDay)
	assert.Equal(t, 14, *e.CycleDay)
	assert.Equal(t, "Нет", e.BingeEating)

	day, ok, err := f.db.LastCycleDayForToday(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 14, day)
}

func TestEngine_CycleDayReusedSameDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 42)
	f.answer(t, 42, "Anna", "женский", "3", "7", "стресс", "8", "работа", "с кем-то", "с телефоном", "14", "Да")

	f.clock.Advance(3 * time.Hour)
	p := f.engine.Begin(ctx, 42)
	assert.Equal(t, fmt.Sprintf(textAskHunger, "Anna"), p.Text)

	p = f.answer(t, 42, "5", "6", "скука", "7", "кафе", "с кем-то", "без телефона")
	assert.Equal(t, textAskBinge, p.Text, "cycle day must not be asked twice a day")
	f.answer(t, 42, "Лёгкое")

	got := f.entries(t, 42)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].CycleDay)
	assert.Equal(t, 14, *got[0].CycleDay)
	assert.Equal(t, 1, f.count(t, "cycle_days"))
}

func TestEngine_CycleDayAskedAgainNextDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 42)
	f.answer(t, 42, "Anna", "Женский", "3", "7", "стресс", "8", "работа", "с кем-то", "с телефоном", "14", "Нет")

	f.clock.Advance(24 * time.Hour)
	f.engine.Begin(ctx, 42)
	p := f.answer(t, 42, "5", "6", "скука", "7", "кафе", "с кем-то", "без телефона")
	assert.Equal(t, textAskCycleDay, p.Text)
}

func TestEngine_NonTrackingGenderNeverAskedCycleDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 7)
	f.answer(t, 7, "Ivan", "Мужской")
	require.NoError(t, f.db.InsertCycleDayRecord(ctx, 7, 3))

	p := f.answer(t, 7, "4", "8", "счастье", "7", "дома", "с кем-то", "с телефоном")
	assert.Equal(t, textAskBinge, p.Text)
	f.answer(t, 7, "Сильное")

	got := f.entries(t, 7)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].CycleDay)
}

func TestEngine_OutOfRangeNumberRepromptsSameState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 1)
	f.answer(t, 1, "Olga", "Женский")

	for _, bad := range []string{"0", "11", "abc", "", "3.5"} {
		p := f.engine.Handle(ctx, 1, bad)
		assert.Equal(t, models.StateHungerBefore, f.engine.State(1), "input %q", bad)
		assert.Contains(t, p.Text, fmt.Sprintf(errNumberRange, 1, 10))
		assert.Contains(t, p.Text, fmt.Sprintf(textAskHunger, "Olga"))
		assert.Len(t, p.Options, 10)
	}

	f.answer(t, 1, "10")
	assert.Equal(t, models.StateSatietyAfter, f.engine.State(1))
}

func TestEngine_CategoricalAnswersAreEnforced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 1)
	f.answer(t, 1, "Olga", "Женский", "2", "9", "раздражение", "7,5")
	assert.Equal(t, models.StateLocation, f.engine.State(1))

	p := f.engine.Handle(ctx, 1, "парк")
	assert.Equal(t, models.StateLocation, f.engine.State(1))
	assert.Contains(t, p.Text, errChooseOption)
	assert.Equal(t, locationLabels, p.Options)

	f.answer(t, 1, "ДОМА", "один/одна", "без телефона")
	p = f.engine.Handle(ctx, 1, "61")
	assert.Equal(t, models.StateCycleDay, f.engine.State(1))
	assert.Contains(t, p.Text, fmt.Sprintf(errNumberRange, minCycleDay, maxCycleDay))

	f.answer(t, 1, "1")
	p = f.engine.Handle(ctx, 1, "может быть")
	assert.Equal(t, models.StateBingeEating, f.engine.State(1))
	assert.Contains(t, p.Text, errChooseOption)

	f.answer(t, 1, "нет")
	got := f.entries(t, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "раздражение", got[0].Emotion)
	assert.InDelta(t, 7.5, got[0].SleepHours, 1e-9)
	assert.Equal(t, "дома", got[0].Location)
	assert.Equal(t, "Нет", got[0].BingeEating)
}

func TestEngine_SleepHoursBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.Start(ctx, 1)
	f.answer(t, 1, "Olga", "Мужской", "2", "9", "скука")

	for _, bad := range []string{"-1", "24.5", "NaN", "восемь"} {
		p := f.engine.Handle(ctx, 1, bad)
		assert.Equal(t, models.StateSleepHours, f.engine.State(1), "input %q", bad)
		assert.Contains(t, p.Text, errSleepHours)
	}
	f.answer(t, 1, "0")
}

func TestEngine_GenderRejectsUnknownLabel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.engine.Start(ctx, 1)
	f.answer(t, 1, "Sam")

	p := f.engine.Handle(ctx, 1, "other")
	assert.Equal(t, models.StateGender, f.engine.State(1))
	assert.Contains(t, p.Text, errChooseOption)

	u, err := f.db.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, u, "user must not be saved before gender is valid")
}

func TestEngine_BeginUnregisteredAsksName(t *testing.T) {
	f := newFixture(t)

	p := f.engine.Begin(context.Background(), 9)
	assert.Equal(t, textIntroduceFirst, p.Text)
	assert.Equal(t, models.StateName, f.engine.State(9))
}

func TestEngine_BeginRegisteredSkipsOnboarding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.UpsertUser(ctx, &models.User{ID: 9, Name: "Kate", Gender: CycleTrackingGender}))

	p := f.engine.Begin(ctx, 9)
	assert.Equal(t, fmt.Sprintf(textAskHunger, "Kate"), p.Text)

	s, ok := f.sessions.Get(9)
	require.True(t, ok)
	assert.Equal(t, models.StateHungerBefore, s.State)
	assert.Equal(t, CycleTrackingGender, s.Gender)
}

func TestEngine_StartRegisteredGreets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.db.UpsertUser(ctx, &models.User{ID: 9, Name: "Kate", Gender: "мужской"}))

	p := f.engine.Start(ctx, 9)
	assert.Equal(t, fmt.Sprintf(textWelcomeBack, "Kate"), p.Text)
	assert.Equal(t, models.StateNone, f.engine.State(9))
}

func TestEngine_OnboardingAgainUpdatesUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 3)
	f.answer(t, 3, "Sasha", "Мужской")
	f.engine.Cancel(3)

	f.engine.Begin(ctx, 3)
	f.sessions.Set(3, models.Session{State: models.StateName})
	f.answer(t, 3, "Alexandra", "Женский")

	ids, err := f.db.ListRegisteredUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
	u, err := f.db.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Alexandra", u.Name)
	assert.Equal(t, CycleTrackingGender, u.Gender)
}

func TestEngine_TextWithoutSession(t *testing.T) {
	f := newFixture(t)

	p := f.engine.Handle(context.Background(), 5, "5")
	assert.Equal(t, textNoSession, p.Text)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestEngine_CancelClearsSession(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background(), 5)

	p := f.engine.Cancel(5)
	assert.Equal(t, textCancelled, p.Text)
	assert.Equal(t, models.StateNone, f.engine.State(5))
}

func TestEngine_CommitFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 42)
	f.answer(t, 42, "Anna", "Мужской", "3", "7", "стресс", "8", "работа", "с кем-то", "с телефоном")

	f.store.insertErr = &storage.Error{Op: "insert_entry", UserID: 42, Err: errors.New("connection refused")}
	p := f.engine.Handle(ctx, 42, "Нет")
	assert.Contains(t, p.Text, textTemporaryFail)
	assert.Equal(t, bingeLabels, p.Options)

	s, ok := f.sessions.Get(42)
	require.True(t, ok)
	assert.Equal(t, models.StateBingeEating, s.State)
	assert.Equal(t, 3, s.Entry.HungerBefore)
	assert.Equal(t, 0, f.count(t, "entries"))

	f.store.insertErr = nil
	p = f.engine.Handle(ctx, 42, "Нет")
	assert.Equal(t, fmt.Sprintf(textSaved, "Anna"), p.Text)
	assert.Equal(t, 1, f.count(t, "entries"))
}

func TestEngine_UpsertFailureKeepsGenderState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.engine.Start(ctx, 42)
	f.answer(t, 42, "Anna")

	f.store.upsertErr = errors.New("timeout")
	p := f.engine.Handle(ctx, 42, "Женский")
	assert.Contains(t, p.Text, textTemporaryFail)
	assert.Equal(t, models.StateGender, f.engine.State(42))

	f.store.upsertErr = nil
	f.answer(t, 42, "Женский")
	assert.Equal(t, models.StateHungerBefore, f.engine.State(42))
}

func TestEngine_History(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.engine.History(ctx, 42)
	assert.Equal(t, textHistoryEmpty, p.Text)

	f.engine.Start(ctx, 42)
	f.answer(t, 42, "Anna", "Женский", "3", "7", "тревога", "6.5", "дома", "один/одна", "без телефона", "14", "Нет")

	p = f.engine.History(ctx, 42)
	assert.Contains(t, p.Text, textHistoryHeader)
	assert.Contains(t, p.Text, "01.03 12:00")
	assert.Contains(t, p.Text, "голод 3, сытость 7, эмоция: тревога, сон 6.5 ч")
	assert.Contains(t, p.Text, "день цикла 14")
}

func TestNeedsCycleDay(t *testing.T) {
	assert.True(t, NeedsCycleDay(CycleTrackingGender, false))
	assert.False(t, NeedsCycleDay(CycleTrackingGender, true))
	assert.False(t, NeedsCycleDay("мужской", false))
	assert.False(t, NeedsCycleDay("", false))
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "7", formatHours(7))
	assert.Equal(t, "6.5", formatHours(6.5))
	assert.Equal(t, "0", formatHours(0))
	assert.Equal(t, "10", formatHours(10))
}
