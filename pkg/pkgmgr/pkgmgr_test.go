package pkgmgr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
	"github.com/windowsadmins/winmaint/pkg/retry"
)

const wingetListOutput = "\r   - \r   \\ \r" +
	"Name                       Id                         Version        Available      Source\r\n" +
	"-------------------------------------------------------------------------------------------\r\n" +
	"Microsoft Edge             Microsoft.Edge             120.0.2210.91                 winget\r\n" +
	"Git                        Git.Git                    2.40.0         2.43.0         winget\r\n" +
	"Contoso Legacy Tool        ARP\\Machine\\X64\\Contoso     1.0\r\n" +
	"\r\n"

func TestParseWingetTable(t *testing.T) {
	pkgs := parseWingetTable(wingetListOutput)
	require.Len(t, pkgs, 3)

	assert.Equal(t, Package{ID: "Microsoft.Edge", Name: "Microsoft Edge", Version: "120.0.2210.91", Source: Winget, Origin: "winget"}, pkgs[0])
	assert.Equal(t, "2.43.0", pkgs[1].Available)
	assert.Equal(t, `ARP\Machine\X64\Contoso`, pkgs[2].ID)
	assert.Equal(t, "1.0", pkgs[2].Version)
	assert.Empty(t, pkgs[2].Origin)
}

func TestParseWingetTableWithoutHeader(t *testing.T) {
	assert.Nil(t, parseWingetTable("No installed package found matching input criteria.\r\n"))
}

func TestWingetCommands(t *testing.T) {
	f := &execx.Fake{}
	w := NewWinget(f)
	ctx := context.Background()

	require.NoError(t, w.Install(ctx, "Git.Git", "2.43.0"))
	require.NoError(t, w.Uninstall(ctx, "Microsoft.BingNews"))
	require.NoError(t, w.Upgrade(ctx, "Git.Git"))

	require.Len(t, f.Calls, 3)
	assert.Equal(t, "winget install --id Git.Git --exact --silent --accept-source-agreements --disable-interactivity --accept-package-agreements --version 2.43.0", f.Calls[0].CommandLine())
	assert.True(t, strings.HasPrefix(f.Calls[1].CommandLine(), "winget uninstall --id Microsoft.BingNews --exact --silent"))
	assert.Contains(t, f.Calls[2].CommandLine(), "upgrade --id Git.Git")
}

func TestWingetNonRetryableCodes(t *testing.T) {
	f := &execx.Fake{}
	f.On("uninstall", execx.Output{ExitCode: int(wingetNoApplicationsFound)}, nil)
	f.On("upgrade", execx.Output{ExitCode: int(wingetUpdateNotApplicable)}, nil)
	f.On("install", execx.Output{ExitCode: 1}, nil)
	w := NewWinget(f)
	ctx := context.Background()

	err := w.Uninstall(ctx, "Missing.App")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, retry.IsPermanent(err))

	err = w.Upgrade(ctx, "Git.Git")
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.True(t, retry.IsPermanent(err))

	err = w.Install(ctx, "Git.Git", "")
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err), "generic failures are retryable")
}

func TestWingetFailuresAreRetried(t *testing.T) {
	f := &execx.Fake{}
	f.On("install", execx.Output{ExitCode: 1}, nil)
	w := NewWinget(f)

	err := retry.Retry(context.Background(), retry.RetryConfig{MaxRetries: 3}, func() error {
		return w.Install(context.Background(), "Git.Git", "")
	})
	require.Error(t, err)
	assert.Len(t, f.CallsMatching("install"), 3)
	assert.Equal(t, 1, execx.ExitCode(err))

	f = &execx.Fake{}
	f.On("upgrade", execx.Output{ExitCode: int(wingetUpdateNotApplicable)}, nil)
	w = NewWinget(f)
	err = retry.Retry(context.Background(), retry.RetryConfig{MaxRetries: 3}, func() error {
		return w.Upgrade(context.Background(), "Git.Git")
	})
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Len(t, f.CallsMatching("upgrade"), 1)
}

func TestChocoList(t *testing.T) {
	f := &execx.Fake{}
	f.On("choco list", execx.Output{Stdout: "7zip|23.1.0\r\ngit|2.43.0\r\nChocolatey v2.2.2\r\n"}, nil)
	pkgs, err := NewChoco(f).List(context.Background())
	require.NoError(t, err)
	require.Len(t, pkgs, 2)
	assert.Equal(t, Package{ID: "7zip", Name: "7zip", Version: "23.1.0", Source: Choco}, pkgs[0])
}

func TestChocoRebootCodesAreSuccess(t *testing.T) {
	f := &execx.Fake{}
	f.Once("install", execx.Output{ExitCode: 3010}, nil)
	f.Once("install", execx.Output{ExitCode: 1}, nil)
	c := NewChoco(f)

	require.NoError(t, c.Install(context.Background(), "git", "2.43.0"))
	assert.Equal(t, "choco install git -y --no-progress --version 2.43.0", f.Calls[0].CommandLine())
	assert.Error(t, c.Install(context.Background(), "git", ""))
}

func TestAppx(t *testing.T) {
	f := &execx.Fake{}
	f.On("Get-AppxPackage -AllUsers |", execx.Output{Stdout: `{"Name":"Microsoft.BingNews","Version":"4.55.0.0","PackageFullName":"Microsoft.BingNews_4.55.0.0_x64__8wekyb3d8bbwe"}`}, nil)
	a := NewAppx(&pwsh.Shell{Runner: f, Exe: "pwsh.exe"})
	ctx := context.Background()

	pkgs, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "Microsoft.BingNews", pkgs[0].ID)
	assert.Equal(t, Appx, pkgs[0].Source)

	require.NoError(t, a.Uninstall(ctx, "Microsoft.BingNews"))
	calls := f.CallsMatching("Remove-AppxPackage")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].CommandLine(), "-Name 'Microsoft.BingNews'")
	assert.Contains(t, calls[0].CommandLine(), "Remove-AppxProvisionedPackage")

	assert.True(t, errors.Is(a.Install(ctx, "x", ""), ErrUnsupported))
	assert.True(t, errors.Is(a.Upgrade(ctx, "x"), ErrUnsupported))
}

func TestNewAndFind(t *testing.T) {
	managers, err := New([]string{"winget", " Choco ", "appx"}, &execx.Fake{}, &pwsh.Shell{})
	require.NoError(t, err)
	require.Len(t, managers, 3)

	m, ok := Find(managers, "CHOCO")
	require.True(t, ok)
	assert.Equal(t, Choco, m.Name())

	_, err = New([]string{"scoop"}, &execx.Fake{}, nil)
	assert.Error(t, err)
}
