package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	assert.True(t, strings.HasPrefix(UserAgent(), "storefront/1.2.3 ("))
	assert.Equal(t, "1.2.3", GetInfo().Version)
}
