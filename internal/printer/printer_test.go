package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestBannersIncludeOutcomeAndPath(t *testing.T) {
	prevNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prevNoColor }()

	var buf bytes.Buffer
	p := New(&buf)

	p.AlreadyCorrect("out/a.txt")
	p.Recovered("out/b.txt")
	p.Downloaded("out/c.txt")
	p.Building("out/d.txt")
	p.CommandFailed("out/e.txt", 2)
	p.Canceled("out/f.txt")

	output := buf.String()
	assert.True(t, strings.Contains(output, "already correct"))
	assert.True(t, strings.Contains(output, "out/a.txt"))
	assert.True(t, strings.Contains(output, "recovered"))
	assert.True(t, strings.Contains(output, "out/b.txt"))
	assert.True(t, strings.Contains(output, "downloaded"))
	assert.True(t, strings.Contains(output, "out/c.txt"))
	assert.True(t, strings.Contains(output, "building"))
	assert.True(t, strings.Contains(output, "out/d.txt"))
	assert.True(t, strings.Contains(output, "command failed, exit=2"))
	assert.True(t, strings.Contains(output, "out/e.txt"))
	assert.True(t, strings.Contains(output, "canceled"))
	assert.True(t, strings.Contains(output, "out/f.txt"))
}

func TestLineFormatsPlainMessage(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	p.Line("%d targets up to date", 3)
	assert.Equal(t, "3 targets up to date\n", buf.String())
}
