package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasksync/domain"
)

func TestTaskRequestTask(t *testing.T) {
	var req TaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": "Pay rent",
		"priority": "high",
		"completed": true,
		"due_date": "2026-05-01T10:00:00+02:00"
	}`), &req))

	task, err := req.Task()
	require.NoError(t, err)
	assert.Equal(t, "Pay rent", task.Title)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.True(t, task.Completed)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), *task.DueDate)
}

func TestTaskRequestPatch(t *testing.T) {
	var req TaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"description": "", "due_date": ""}`), &req))

	patch, err := req.Patch()
	require.NoError(t, err)
	assert.Nil(t, patch.Title)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "", *patch.Description)
	assert.Nil(t, patch.DueDate)
}

func TestTaskRequestRejectsBadDate(t *testing.T) {
	bad := "tomorrow"
	_, err := TaskRequest{DueDate: &bad}.Task()
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}
