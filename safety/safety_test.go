package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCommandDangerousPatterns(t *testing.T) {
	g := New("/tmp", nil)

	d := g.ClassifyCommand("rm -rf /")
	assert.True(t, d.Dangerous)

	d = g.ClassifyCommand("sudo apt install foo")
	assert.True(t, d.Dangerous)

	d = g.ClassifyCommand("git push --force origin main")
	assert.True(t, d.Dangerous)

	d = g.ClassifyCommand("DELETE FROM users")
	assert.True(t, d.Dangerous)

	d = g.ClassifyCommand("DELETE FROM users WHERE id = 1")
	assert.False(t, d.Dangerous)
}

func TestClassifyCommandOutsideSandbox(t *testing.T) {
	g := New("/tmp", nil)

	d := g.ClassifyCommand("ls /etc")
	assert.True(t, d.Dangerous)
	assert.Contains(t, d.Reason, "outside working directory")
}

func TestClassifyCommandAllowlist(t *testing.T) {
	g := New("/tmp", nil)

	d := g.ClassifyCommand("git clone https://example.com/repo.git /tmp/x")
	assert.False(t, d.Dangerous)

	d = g.ClassifyCommand("echo /etc/passwd")
	assert.False(t, d.Dangerous)
}

func TestIsPathInsideDirectorySeparatorAware(t *testing.T) {
	assert.True(t, IsPathInsideDirectory("/home/user/project", "/home/user"))
	assert.True(t, IsPathInsideDirectory("/home/user", "/home/user"))
	assert.False(t, IsPathInsideDirectory("/home/userX", "/home/user"))
	assert.False(t, IsPathInsideDirectory("/home/user2", "/home/user"))
}

func TestConfirmNoCallbackDenies(t *testing.T) {
	g := New("/tmp", nil)
	ok, reason := g.Confirm("do the dangerous thing?")
	assert.False(t, ok)
	assert.Equal(t, "No confirmation callback available", reason)
}

func TestConfirmCallbackHonored(t *testing.T) {
	g := New("/tmp", func(prompt string) bool { return true })
	ok, reason := g.Confirm("do the dangerous thing?")
	assert.True(t, ok)
	assert.Empty(t, reason)

	g.SetConfirm(func(prompt string) bool { return false })
	ok, reason = g.Confirm("do the dangerous thing?")
	assert.False(t, ok)
	assert.Equal(t, "Denied by user", reason)
}
