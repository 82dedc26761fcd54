package zookeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowestOrdersBySequence(t *testing.T) {
	children := []string{
		"_c_ffff-lock-0000000007",
		"_c_0000-lock-0000000009",
		"_c_aaaa-lock-0000000003",
	}
	assert.Equal(t, "_c_aaaa-lock-0000000003", lowest(children))
	assert.Equal(t, "", lowest(nil))
}
