package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestSQLiteErrorClassification(t *testing.T) {
	t.Parallel()

	busy := errors.New("database is locked (5) (SQLITE_BUSY)")
	locked := errors.New("database is locked")
	unique := fmt.Errorf("insert turn: %w", errors.New("constraint failed: UNIQUE constraint failed: turns.session_id, turns.persona_id, turns.idx (1555)"))
	other := errors.New("no such table: turns")

	if !IsSQLiteConflictError(busy) || !IsSQLiteConflictError(locked) {
		t.Error("busy and locked errors should be conflicts")
	}
	if IsSQLiteConflictError(other) || IsSQLiteConflictError(nil) {
		t.Error("unrelated errors are not conflicts")
	}
	if !IsSQLiteUniqueError(unique) {
		t.Error("wrapped unique violation not detected")
	}
	if IsSQLiteUniqueError(busy) || IsSQLiteUniqueError(nil) {
		t.Error("busy is not a unique violation")
	}
}
