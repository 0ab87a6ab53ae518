package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeKeyString(t *testing.T) {
	k := NodeKey{Host: "10.0.0.5", Port: 8080}
	assert.Equal(t, "10.0.0.5:8080", k.String())
}
