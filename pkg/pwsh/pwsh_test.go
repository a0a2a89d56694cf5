package pwsh

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/execx"
)

func testShell(f *execx.Fake) *Shell {
	return &Shell{Runner: f, Exe: "pwsh.exe"}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'plain'", Quote("plain"))
	assert.Equal(t, "'it''s'", Quote("it's"))
}

func TestDecodeJSONList(t *testing.T) {
	var single []FirewallProfile
	require.NoError(t, DecodeJSONList([]byte("\xef\xbb\xbf{\"Name\":\"Public\",\"Enabled\":true}\r\n"), &single))
	assert.Equal(t, []FirewallProfile{{Name: "Public", Enabled: true}}, single)

	var many []FirewallProfile
	require.NoError(t, DecodeJSONList([]byte(`[{"Name":"Domain","Enabled":false},{"Name":"Private","Enabled":true}]`), &many))
	assert.Len(t, many, 2)

	var none []FirewallProfile
	require.NoError(t, DecodeJSONList([]byte("  "), &none))
	assert.Nil(t, none)

	assert.Error(t, DecodeJSONList([]byte("WARNING: not json"), &none))
}

func TestRunPassesNonInteractiveArgs(t *testing.T) {
	f := &execx.Fake{}
	f.On("Get-Date", execx.Output{Stdout: "  today \r\n"}, nil)
	out, err := testShell(f).Run(context.Background(), "Get-Date")
	require.NoError(t, err)
	assert.Equal(t, "today", out)

	require.Len(t, f.Calls, 1)
	assert.Equal(t, "pwsh.exe", f.Calls[0].Name)
	assert.Equal(t, []string{"-NoLogo", "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", "Get-Date"}, f.Calls[0].Args)
}

func TestPendingUpdatesNormalizesKB(t *testing.T) {
	f := &execx.Fake{}
	f.On("Get-WindowsUpdate", execx.Output{Stdout: `[{"KB":"kb5034441","Title":"Security Update","Size":1024,"RebootRequired":true},{"KB":"5001716","Title":"Servicing"}]`}, nil)

	updates, err := testShell(f).PendingUpdates(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "KB5034441", updates[0].KB)
	assert.Equal(t, int64(1024), updates[0].Size)
	assert.Equal(t, "KB5001716", updates[1].KB)

	script := f.Calls[0].Args[len(f.Calls[0].Args)-1]
	assert.Contains(t, script, "-NotCategory 'Drivers'")
}

func TestInstallUpdateNeverReboots(t *testing.T) {
	f := &execx.Fake{}
	require.NoError(t, testShell(f).InstallUpdate(context.Background(), "5034441"))
	script := f.Calls[0].Args[len(f.Calls[0].Args)-1]
	assert.Contains(t, script, "-KBArticleID 'KB5034441'")
	assert.Contains(t, script, "-IgnoreReboot")
	assert.False(t, strings.Contains(script, "-AutoReboot"))
}

func TestInstallUpdateFailure(t *testing.T) {
	f := &execx.Fake{}
	f.On("Install-WindowsUpdate", execx.Output{ExitCode: 1, Stderr: "access denied"}, nil)
	err := testShell(f).InstallUpdate(context.Background(), "KB1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KB1")
	assert.Equal(t, 1, execx.ExitCode(err))
}

func TestFirewall(t *testing.T) {
	f := &execx.Fake{}
	f.On("Get-NetFirewallProfile", execx.Output{Stdout: `[{"Name":"Domain","Enabled":true},{"Name":"Public","Enabled":false}]`}, nil)
	sh := testShell(f)

	profiles, err := sh.FirewallProfiles(context.Background())
	require.NoError(t, err)
	assert.False(t, profiles[1].Enabled)

	require.NoError(t, sh.SetFirewallProfile(context.Background(), "Public", true))
	calls := f.CallsMatching("Set-NetFirewallProfile")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].CommandLine(), "-Profile 'Public' -Enabled True")
}

func TestNormalizeKB(t *testing.T) {
	assert.Equal(t, "KB123", NormalizeKB(" kb123 "))
	assert.Equal(t, "KB123", NormalizeKB("123"))
	assert.Equal(t, "", NormalizeKB(""))
}
