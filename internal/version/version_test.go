package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
	assert.Equal(t, info.Version, GetVersion())
}

func TestString(t *testing.T) {
	orig := [3]string{version, commit, date}
	t.Cleanup(func() { version, commit, date = orig[0], orig[1], orig[2] })

	version, commit, date = "v1.4.0", "abc1234", "2026-04-14"

	assert.Equal(t, "version=v1.4.0 commit=abc1234 date=2026-04-14", String())
	assert.Equal(t, "v1.4.0", GetVersion())
}
