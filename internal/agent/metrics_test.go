package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func withStatPath(t *testing.T, path string) {
	t.Helper()
	orig := statPath
	statPath = path
	t.Cleanup(func() { statPath = orig })
}

func withMeminfoPath(t *testing.T, path string) {
	t.Helper()
	orig := meminfoPath
	meminfoPath = path
	t.Cleanup(func() { meminfoPath = orig })
}

const statFixtureA = "cpu  100 0 50 800 50 0 0 0 0 0\n"
const statFixtureB = "cpu  120 0 60 810 50 0 0 0 0 0\n"

func TestSampler_CPUPercentFirstCallIsZero(t *testing.T) {
	withStatPath(t, writeFixture(t, "stat", statFixtureA))

	s := NewSampler()
	assert.Equal(t, 0.0, s.CPUPercent())
}

func TestSampler_CPUPercentSecondCallComputesDelta(t *testing.T) {
	path := writeFixture(t, "stat", statFixtureA)
	withStatPath(t, path)

	s := NewSampler()
	assert.Equal(t, 0.0, s.CPUPercent())

	require.NoError(t, os.WriteFile(path, []byte(statFixtureB), 0o644))
	pct := s.CPUPercent()
	assert.Greater(t, pct, 0.0)
	assert.Less(t, pct, 100.0)
}

func TestSampler_CPUPercentMissingFileIsZero(t *testing.T) {
	withStatPath(t, filepath.Join(t.TempDir(), "missing"))

	s := NewSampler()
	assert.Equal(t, 0.0, s.CPUPercent())
}

func TestSampler_MemoryStats(t *testing.T) {
	withMeminfoPath(t, writeFixture(t, "meminfo", "MemTotal:       1000 kB\nMemAvailable:    250 kB\n"))

	s := NewSampler()
	pct, totalKB, availKB := s.MemoryStats()
	assert.Equal(t, uint64(1000), totalKB)
	assert.Equal(t, uint64(250), availKB)
	assert.InDelta(t, 75.0, pct, 0.01)
}

func TestSampler_MemoryStatsZeroTotal(t *testing.T) {
	withMeminfoPath(t, writeFixture(t, "meminfo", "MemTotal:       0 kB\nMemAvailable:    0 kB\n"))

	s := NewSampler()
	pct, totalKB, _ := s.MemoryStats()
	assert.Equal(t, uint64(0), totalKB)
	assert.Equal(t, 0.0, pct)
}
