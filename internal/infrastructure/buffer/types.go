package buffer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EntityUser = "user"
	EntityTask = "task"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"

	// Lower values drain first.
	PriorityTask    = 2
	PriorityUser    = 3
	defaultPriority = 3
	maxPriority     = 5
)

// Item is a write that could not reach the primary store and waits for replay.
type Item struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	key []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > maxPriority {
		i.Priority = defaultPriority
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

// storageKey sorts by priority, then age, so a cursor walk yields replay order.
func (i *Item) storageKey() []byte {
	return []byte(fmt.Sprintf("%d_%020d_%s", i.Priority, i.Timestamp.UnixNano(), i.ID))
}
