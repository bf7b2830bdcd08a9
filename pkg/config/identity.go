package config

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
)

// Identity describes the library and the platform it runs on. It is rendered
// into the default User-Agent header.
type Identity struct {
	Name      string
	Version   string
	GoVersion string
	OS        string
	Arch      string
	Compiler  string
}

var defaultIdentity = sync.OnceValue(func() Identity {
	return Identity{
		Name:      constants.LibraryName,
		Version:   constants.Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Compiler:  runtime.Compiler,
	}
})

// DefaultIdentity returns the identity of the running process. It is computed once.
func DefaultIdentity() Identity {
	return defaultIdentity()
}

// UserAgent renders the identity, e.g.
// "OTel-OTLP-MetricsExporter-Go/0.1.0 Go/go1.25.4 (linux/amd64; gc)".
func (i Identity) UserAgent() string {
	return fmt.Sprintf("%s/%s Go/%s (%s/%s; %s)", i.Name, i.Version, i.GoVersion, i.OS, i.Arch, i.Compiler)
}
