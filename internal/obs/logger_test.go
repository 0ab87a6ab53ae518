package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DefaultsLevelToInfo(t *testing.T) {
	log := Build(Config{})
	require.NotNil(t, log)
	assert.Equal(t, "info", atomicLevel.Level().String())
	_ = log.Sync()
}

func TestSetLevel_InvalidReturnsError(t *testing.T) {
	err := SetLevel("not-a-level")
	assert.Error(t, err)
}

func TestSetLevel_ValidChangesAtomicLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	assert.True(t, atomicLevel.Enabled(-1))
}

func TestBuild_ConsoleEncoding(t *testing.T) {
	log := Build(Config{Level: "warn", Encoding: "console"})
	require.NotNil(t, log)
	_ = log.Sync()
}
