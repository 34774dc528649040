package database

import (
	"strings"
	"testing"
)

func tableDDL(t *testing.T, name string) string {
	t.Helper()
	for _, stmt := range tables {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+name+" (") {
			return stmt
		}
	}
	t.Fatalf("no DDL for %s", name)
	return ""
}

// The resend and duplicate guards select by nickname, so the column must
// compare byte for byte: "Dad" and "dad" are different nicknames.
func TestSelectionNicknameIsCaseSensitive(t *testing.T) {
	ddl := tableDDL(t, "lottery_selections")
	if !strings.Contains(ddl, "nickname VARCHAR(255) COLLATE utf8mb4_bin NOT NULL") {
		t.Fatal("lottery_selections.nickname must use utf8mb4_bin")
	}
}

func TestIdempotencyKeyFitsCanonicalUUID(t *testing.T) {
	if !strings.Contains(tableDDL(t, "lottery_selections"), "idempotency_key CHAR(36)") {
		t.Fatal("idempotency_key must hold a 36-char uuid")
	}
}

func TestTablesAreIdempotent(t *testing.T) {
	for i, stmt := range tables {
		if !strings.HasPrefix(strings.TrimSpace(stmt), "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("statement %d is not idempotent", i)
		}
	}
}
