package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	wrapped := WrapString("the quick brown fox jumps over the lazy dog and keeps running far away")
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short", WrapString("  short "))
}

func TestHashID(t *testing.T) {
	assert.Equal(t, HashID("node-1"), HashID(" node-1 "))
	assert.NotEqual(t, HashID("node-1"), HashID("node-2"))
}

func TestGetTarget(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("target", "rkv+tcp://LOCALHOST:8080?shard=100&serializer=json")
	viper.Set("db", 2)
	target, err := GetTarget()
	require.NoError(t, err)
	assert.Equal(t, "rkv+tcp://localhost:8080/2?serializer=json&shard=100", target.String())
	assert.Equal(t, 2, target.DB())

	viper.Set("target", "not a target")
	_, err = GetTarget()
	assert.Error(t, err)
}
