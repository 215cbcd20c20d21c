package config

// Set at link time:
//
//	go build -ldflags "-X raincheck/internal/config.version=1.1.0 \
//	    -X raincheck/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X raincheck/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
