package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientVersion(t *testing.T) {
	assert.NotEmpty(t, ClientVersion())
}

func TestSemverFallsBackOnDevelopmentBuilds(t *testing.T) {
	assert.Equal(t, "0.0.0", Semver().String())
}
