package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNullValues(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	now := time.Now()
	assert.Equal(t, now, nullTime(now))

	assert.Nil(t, nullDue(nil))
	assert.Equal(t, now, nullDue(&now))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: uniqueViolation})
	assert.True(t, isUniqueViolation(err))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(fmt.Errorf("boom")))
}

func TestTagsOrEmpty(t *testing.T) {
	assert.Equal(t, []string{}, tagsOrEmpty(nil))
	assert.Equal(t, []string{"Work"}, tagsOrEmpty([]string{"Work"}))
}
