// Package buildinfo exposes build metadata injected at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/otaverifier/internal/buildinfo.buildVersion=v1.0.0 \
//	  -X github.com/dmitrijs2005/otaverifier/internal/buildinfo.buildDate=2024-05-01 \
//	  -X github.com/dmitrijs2005/otaverifier/internal/buildinfo.buildCommit=abc123" ./cmd/cli
package buildinfo

import (
	"fmt"
	"io"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", buildVersion)
	fmt.Fprintf(w, "Build date: %s\n", buildDate)
	fmt.Fprintf(w, "Build commit: %s\n", buildCommit)
}
