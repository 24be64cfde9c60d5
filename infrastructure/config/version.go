package config

import "fmt"

const (
	appMajor uint = 0
	appMinor uint = 3
	appPatch uint = 1
)

// appBuild may be set at link time with -ldflags "-X ...config.appBuild=...".
var appBuild string

func version() string {
	v := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appBuild != "" {
		v += "-" + appBuild
	}
	return v
}

// Version returns the application version as a properly formed string.
func Version() string {
	return version()
}
