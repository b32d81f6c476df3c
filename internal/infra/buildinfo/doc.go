// Package buildinfo exposes build information for lobbysync.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/lobbysync-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
