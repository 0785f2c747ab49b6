// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/amanthanvi/registry/internal/version.Version=v1.0.0 \
//	  -X github.com/amanthanvi/registry/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/amanthanvi/registry/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
