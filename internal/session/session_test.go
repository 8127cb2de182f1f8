package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"telegram-emotion-diary/internal/models"
)

func TestStore_SetGetClear(t *testing.T) {
	s := NewStore()

	_, ok := s.Get(1)
	assert.False(t, ok)

	s.Set(1, models.Session{State: models.StateGender, Name: "Anna"})
	got, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, models.StateGender, got.State)
	assert.Equal(t, "Anna", got.Name)

	s.Set(1, models.Session{State: models.StateHungerBefore, Name: "Anna"})
	assert.Equal(t, 1, s.Len(), "one session per user")

	s.Clear(1)
	_, ok = s.Get(1)
	assert.False(t, ok)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Set(1, models.Session{State: models.StateEmotion})

	got, _ := s.Get(1)
	got.State = models.StateCommit

	again, _ := s.Get(1)
	assert.Equal(t, models.StateEmotion, again.State)
}

func TestStore_ConcurrentUsers(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(id, models.Session{State: models.StateHungerBefore, Entry: models.DiaryEntry{HungerBefore: j}})
				_, _ = s.Get(id)
			}
			if id%2 == 0 {
				s.Clear(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, s.Len())
}
