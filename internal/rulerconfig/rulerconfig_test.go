package rulerconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulerbuild/ruler/internal/system"
)

func TestMirrorsLoadRoundTrip(t *testing.T) {
	sys := system.NewFake()
	sys.WriteFile("urls.toml", "urls = [\"http://a\", \"http://b\"]\n")

	m, err := LoadMirrors(sys, "urls.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, m.URLs)
}

func TestMirrorsValidateRejectsEmptyURL(t *testing.T) {
	m := &Mirrors{URLs: []string{""}}
	assert.Error(t, m.Validate())
}

func TestInvocationValidateRejectsNoRuleFiles(t *testing.T) {
	inv := NewInvocation(nil, "")
	assert.Error(t, inv.Validate())
}

func TestInvocationSaveThenLoadRoundTrips(t *testing.T) {
	sys := system.NewFake()
	inv := NewInvocation([]string{"build.ruler", "extra.ruler"}, "all")

	require.NoError(t, inv.Save(sys, ".ruler/config.toml"))

	got, err := LoadInvocation(sys, ".ruler/config.toml")
	require.NoError(t, err)
	assert.Equal(t, inv.RuleFiles, got.RuleFiles)
	assert.Equal(t, inv.Directory, got.Directory)
	assert.Equal(t, inv.Goal, got.Goal)
}

func TestInvocationSaveRejectsInvalid(t *testing.T) {
	sys := system.NewFake()
	inv := &Invocation{}
	assert.Error(t, inv.Save(sys, ".ruler/config.toml"))
}

func TestCleanExclusionsMatch(t *testing.T) {
	c := NewCleanExclusions([]string{"build/**/*.log", "*.tmp"})
	require.NoError(t, c.Validate())

	assert.True(t, c.Match("build/a/b/out.log"))
	assert.True(t, c.Match("scratch.tmp"))
	assert.False(t, c.Match("build/out.bin"))
}

func TestCleanExclusionsValidateRejectsBadPattern(t *testing.T) {
	c := NewCleanExclusions([]string{"["})
	assert.Error(t, c.Validate())
}
