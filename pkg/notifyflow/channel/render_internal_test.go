package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingCopy(t *testing.T) {
	assert.Empty(t, missingCopy(messages[:]))

	gappy := []copyText{{"a", "b"}, {}, {"c", ""}}
	assert.Equal(t, []int{1, 2}, missingCopy(gappy))
}
