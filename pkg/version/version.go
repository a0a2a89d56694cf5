// pkg/version/version.go - build version information for winmaint binaries.

package version

import (
	"fmt"
	"io"
	"runtime"
)

// These values are private which ensures they can only be set with the build flags.
var (
	version   = "dev"
	branch    = "unknown"
	revision  = "unknown"
	buildDate = "unknown"
	appName   = "winmaint"
)

// Info is a structure with version build information about the current application.
type Info struct {
	AppName   string `json:"app_name" yaml:"app_name"`
	Version   string `json:"version" yaml:"version"`
	Branch    string `json:"branch" yaml:"branch"`
	Revision  string `json:"revision" yaml:"revision"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	BuildDate string `json:"build_date" yaml:"build_date"`
}

// Version returns a structure with the current version information.
func Version() Info {
	return Info{
		AppName:   appName,
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
	}
}

// String returns "<app> <version>".
func (i Info) String() string {
	return fmt.Sprintf("%s %s", i.AppName, i.Version)
}

// Fprint writes "<app> <version>" to w, followed by the build details when full is set.
func (i Info) Fprint(w io.Writer, full bool) {
	fmt.Fprintln(w, i.String())
	if !full {
		return
	}
	fmt.Fprintf(w, "  branch: \t%s\n", i.Branch)
	fmt.Fprintf(w, "  revision: \t%s\n", i.Revision)
	fmt.Fprintf(w, "  build date: \t%s\n", i.BuildDate)
	fmt.Fprintf(w, "  go version: \t%s\n", i.GoVersion)
}
