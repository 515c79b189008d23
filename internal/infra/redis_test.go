package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedis_RejectsURLWithoutScheme(t *testing.T) {
	_, err := NewRedis("localhost:6379", 2)
	assert.Error(t, err)
}
