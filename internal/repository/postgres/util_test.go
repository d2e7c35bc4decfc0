package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPgErr(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}
	other := errors.New("conn reset")

	assert.ErrorIs(t, mapPgErr(dup), ErrConflict)
	assert.ErrorIs(t, mapPgErr(fk), ErrConstraint)
	assert.Equal(t, other, mapPgErr(other))
	assert.NotErrorIs(t, mapPgErr(&pgconn.PgError{Code: "40001"}), ErrConflict)
}

func TestNullTime(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	now := time.Now()
	assert.Equal(t, now, *nullTime(now))
}
