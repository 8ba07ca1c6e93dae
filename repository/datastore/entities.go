package datastore

import (
	"time"

	gcds "cloud.google.com/go/datastore"

	"github.com/fastygo/tasksync/domain"
)

const (
	KindUser      = "User"
	KindUserEmail = "UserEmail"
	KindTask      = "Task"
)

type userEntity struct {
	Email        string    `datastore:"email"`
	PasswordHash string    `datastore:"password_hash,noindex"`
	Role         string    `datastore:"role"`
	Status       string    `datastore:"status"`
	CreatedAt    time.Time `datastore:"created_at"`
	UpdatedAt    time.Time `datastore:"updated_at"`
}

// emailEntity reserves an address so registration stays unique inside a transaction.
type emailEntity struct {
	UserID string `datastore:"user_id,noindex"`
}

type taskEntity struct {
	Title       string    `datastore:"title,noindex"`
	Description string    `datastore:"description,noindex"`
	Completed   bool      `datastore:"completed"`
	Category    string    `datastore:"category"`
	Priority    string    `datastore:"priority"`
	Tags        []string  `datastore:"tags"`
	DueDate     time.Time `datastore:"due_date,omitempty"`
	CreatedAt   time.Time `datastore:"created_at"`
	UpdatedAt   time.Time `datastore:"updated_at"`
}

func userKey(id string) *gcds.Key {
	return gcds.NameKey(KindUser, id, nil)
}

func emailKey(email string) *gcds.Key {
	return gcds.NameKey(KindUserEmail, email, nil)
}

// taskKey places every task under its owner, the users/{uid}/tasks/{id} path.
func taskKey(userID, id string) *gcds.Key {
	return gcds.NameKey(KindTask, id, userKey(userID))
}

func toUserEntity(u *domain.User) *userEntity {
	return &userEntity{
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Status:       u.Status,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (e *userEntity) toDomain(id string) *domain.User {
	return &domain.User{
		ID:           id,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		Role:         e.Role,
		Status:       e.Status,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toTaskEntity(t *domain.Task) *taskEntity {
	e := &taskEntity{
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Category:    t.Category,
		Priority:    t.Priority,
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DueDate != nil {
		e.DueDate = t.DueDate.UTC()
	}
	return e
}

func (e *taskEntity) toDomain(key *gcds.Key) domain.Task {
	task := domain.Task{
		ID:          key.Name,
		Title:       e.Title,
		Description: e.Description,
		Completed:   e.Completed,
		Category:    e.Category,
		Priority:    e.Priority,
		Tags:        e.Tags,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if key.Parent != nil {
		task.UserID = key.Parent.Name
	}
	if !e.DueDate.IsZero() {
		due := e.DueDate
		task.DueDate = &due
	}
	task.Normalize()
	return task
}
