package kv

import (
	"testing"

	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommands(t *testing.T) {
	commands, err := parseCommands([]string{"set a 1", "  incr   a "})
	require.NoError(t, err)
	assert.Equal(t, []store.Command{
		{Name: "SET", Args: []string{"a", "1"}},
		{Name: "INCR", Args: []string{"a"}},
	}, commands)

	_, err = parseCommands([]string{"GET a", "  "})
	assert.Error(t, err)
}

func TestFormatReply(t *testing.T) {
	assert.Equal(t, "(nil)", formatReply(nil))
	assert.Equal(t, "(integer) 3", formatReply(int64(3)))
	assert.Equal(t, `"v"`, formatReply("v"))
	assert.Equal(t, "(empty array)", formatReply([]any{}))
	assert.Equal(t, "1) \"a\"\n2) (integer) 2\n3) (nil)", formatReply([]any{"a", int64(2), nil}))
}
