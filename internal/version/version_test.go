package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionPrefersLdflags(t *testing.T) {
	previous := Version
	t.Cleanup(func() { Version = previous })

	Version = "v1.4.0"

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "v1.4.0", Get().Version)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "v1.4.0",
		GitCommit: "0123456789abcdef",
		BuildDate: "2026-01-02",
		GoVersion: "go1.25.0",
		Platform:  "linux/amd64",
	}

	assert.Equal(t, "runreel v1.4.0 (0123456) built 2026-01-02 go1.25.0 linux/amd64", info.String())
	assert.Equal(t, "runreel dev go1.25.0 linux/amd64", Info{Version: "dev", GoVersion: "go1.25.0", Platform: "linux/amd64"}.String())
}
