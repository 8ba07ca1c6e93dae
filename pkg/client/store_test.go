package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/domain"
)

func at(day int) *time.Time {
	t := time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestStoreReducers(t *testing.T) {
	store := NewStore()
	var seen int
	store.Subscribe(func(State) { seen++ })

	store.SetTasks([]domain.Task{{ID: "a"}, {ID: "b"}})
	store.AddTask(domain.Task{ID: "c"})
	store.ReplaceTask(domain.Task{ID: "a", Title: "renamed"})
	store.ReplaceTask(domain.Task{ID: "zzz"})
	store.RemoveTask("b")

	st := store.State()
	require.Len(t, st.Tasks, 2)
	assert.Equal(t, "c", st.Tasks[0].ID)
	assert.Equal(t, "renamed", st.Tasks[1].Title)
	assert.Equal(t, 5, seen)

	st.Tasks[0].ID = "mutated"
	assert.Equal(t, "c", store.State().Tasks[0].ID)

	store.SetUser(&domain.User{ID: "u1"})
	store.setPending()
	store.settle(errors.New("network down"))
	st = store.State()
	assert.False(t, st.Loading)
	assert.Equal(t, "network down", st.Error)

	store.Clear()
	st = store.State()
	assert.Nil(t, st.User)
	assert.Empty(t, st.Tasks)
	assert.Empty(t, st.Error)
}

func TestBuildSections(t *testing.T) {
	tasks := []domain.Task{
		{ID: "today-undated", Category: domain.CategoryToday},
		{ID: "other-late", Category: "Errands", DueDate: at(9)},
		{ID: "today-late", Category: domain.CategoryToday, DueDate: at(5)},
		{ID: "today-early", Category: domain.CategoryToday, DueDate: at(2)},
		{ID: "other-early", Category: domain.CategoryOther, DueDate: at(1)},
		{ID: "uncategorized"},
	}

	sections := BuildSections(tasks)
	require.Len(t, sections, 2)
	assert.Equal(t, domain.CategoryToday, sections[0].Title)
	assert.Equal(t, []string{"today-early", "today-late", "today-undated"}, ids(sections[0].Tasks))
	assert.Equal(t, domain.CategoryOther, sections[1].Title)
	assert.Equal(t, []string{"other-early", "other-late"}, ids(sections[1].Tasks))
}

func TestBuildSectionsFallsBackToAllTasks(t *testing.T) {
	sections := BuildSections([]domain.Task{{ID: "x"}, {ID: "y", DueDate: at(3)}})
	require.Len(t, sections, 1)
	assert.Equal(t, SectionAllTasks, sections[0].Title)
	assert.Equal(t, []string{"y", "x"}, ids(sections[0].Tasks))

	assert.Empty(t, BuildSections(nil))
}

func ids(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
