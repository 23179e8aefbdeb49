package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSprintf(t *testing.T) {
	assert.Equal(t, "hart 3 at pc=1a", sprintf("hart %d at pc=%x", 3, 0x1a))
	assert.Equal(t, "100%", sprintf("%d%%", 100))
	assert.Equal(t, "hello glenda", sprintf("%s %s", "hello", "glenda"))
	assert.Equal(t, "-5", sprintf("%d", -5))
	assert.Equal(t, "0", sprintf("%d", 0))
}
