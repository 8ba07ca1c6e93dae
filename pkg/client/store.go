package client

import (
	"sort"
	"sync"

	"github.com/fastygo/tasksync/domain"
)

const SectionAllTasks = "All Tasks"

// State is a copy of the store contents.
type State struct {
	User    *domain.User
	Tasks   []domain.Task
	Loading bool
	// Error holds the message of the last failed action.
	Error string
}

// Section is a titled group of tasks for display.
type Section struct {
	Title string
	Tasks []domain.Task
}

// Store holds the signed-in user and their task list. Listeners are
// called after every change with the new state.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

func NewStore() *Store {
	return &Store{state: State{Tasks: []domain.Task{}}}
}

// State returns a copy safe to read without locking.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Subscribe registers fn to be called after each change.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SetTasks replaces the whole list.
func (s *Store) SetTasks(tasks []domain.Task) {
	s.update(func(st *State) {
		st.Tasks = append(make([]domain.Task, 0, len(tasks)), tasks...)
	})
}

// AddTask puts a new task at the front of the list.
func (s *Store) AddTask(task domain.Task) {
	s.update(func(st *State) {
		st.Tasks = append([]domain.Task{task}, st.Tasks...)
	})
}

// ReplaceTask swaps the task with the same id. Unknown ids are ignored.
func (s *Store) ReplaceTask(task domain.Task) {
	s.update(func(st *State) {
		for i := range st.Tasks {
			if st.Tasks[i].ID == task.ID {
				st.Tasks[i] = task
				return
			}
		}
	})
}

// RemoveTask drops the task with the given id.
func (s *Store) RemoveTask(id string) {
	s.update(func(st *State) {
		kept := st.Tasks[:0:0]
		for _, t := range st.Tasks {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		st.Tasks = kept
	})
}

func (s *Store) SetUser(user *domain.User) {
	s.update(func(st *State) { st.User = user })
}

// Clear resets tasks, user and status.
func (s *Store) Clear() {
	s.update(func(st *State) { *st = State{Tasks: []domain.Task{}} })
}

func (s *Store) setPending() {
	s.update(func(st *State) {
		st.Loading = true
		st.Error = ""
	})
}

func (s *Store) settle(err error) {
	s.update(func(st *State) {
		st.Loading = false
		if err != nil {
			st.Error = err.Error()
		}
	})
}

// Sections groups tasks by category: "Today" first, then every other
// category under "Other". When neither applies the list comes back as a
// single "All Tasks" section. Each section is ordered by due date with
// undated tasks last.
func (s *Store) Sections() []Section {
	return BuildSections(s.State().Tasks)
}

func BuildSections(tasks []domain.Task) []Section {
	sorted := append([]domain.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].DueDate, sorted[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	var today, other []domain.Task
	for _, t := range sorted {
		switch {
		case t.Category == domain.CategoryToday:
			today = append(today, t)
		case t.Category != "":
			other = append(other, t)
		}
	}

	var sections []Section
	if len(today) > 0 {
		sections = append(sections, Section{Title: domain.CategoryToday, Tasks: today})
	}
	if len(other) > 0 {
		sections = append(sections, Section{Title: domain.CategoryOther, Tasks: other})
	}
	if len(sections) == 0 && len(sorted) > 0 {
		sections = append(sections, Section{Title: SectionAllTasks, Tasks: sorted})
	}
	return sections
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.copyLocked()
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (s *Store) copyLocked() State {
	st := s.state
	st.Tasks = append(make([]domain.Task, 0, len(s.state.Tasks)), s.state.Tasks...)
	if s.state.User != nil {
		u := *s.state.User
		st.User = &u
	}
	return st
}
