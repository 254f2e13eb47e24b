package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey(1, 2), DirectKey(2, 1))
	assert.Equal(t, "1:2", DirectKey(2, 1))
	assert.Equal(t, "7:42", DirectKey(42, 7))
}
