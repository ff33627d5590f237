package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	for _, path := range [][]string{
		{"start"},
		{"worker", "run"},
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"seed"},
		{"integrity", "check"},
		{"integrity", "fix"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestIntegrityFixRequiresIssueType(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"integrity", "fix"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"total": 2}))
	assert.JSONEq(t, `{"total":2}`, buf.String())
}
