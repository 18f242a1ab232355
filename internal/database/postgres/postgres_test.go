package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatements(t *testing.T) {
	statements := Statements()

	assert.NotEmpty(t, statements)
	for _, s := range statements {
		assert.NotEmpty(t, s)
		assert.False(t, strings.HasSuffix(s, ";"))
	}

	joined := strings.Join(statements, "\n")
	for _, table := range []string{"applications", "application_responses", "application_votes", "admin_notes", "files"} {
		assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, joined, "UNIQUE (application_id, admin_id)")
}
