package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Bundle(ctx context.Context, path string) error
	Checksum(ctx context.Context, path string) error
	Version(ctx context.Context, version string) error
	Creds(ctx context.Context) error
	Storage(ctx context.Context) error
	Status(ctx context.Context) error
	Submit(ctx context.Context) error
	Bundles(ctx context.Context) error
	Install(ctx context.Context, key string) error
	Releases(ctx context.Context, version string) error
	History(ctx context.Context) error
}

const helpText = `Available commands:
  bundle <path>     select the .raucb bundle
  checksum <path>   select the .md5 checksum file
  version <v>       set the release version
  creds             enter access key, secret key and session token
  storage           enter bucket and region
  status            show the session
  submit            encrypt credentials and upload
  bundles           list bundles on the backend
  install <key>     install a bundle on the devices
  releases [v]      list releases in the bucket, or the objects of release v
  history           show recent uploads
  exit | quit       leave the program`

// runREPL starts a simple read–eval–print loop for the uploader CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The rest of the line is the
// command argument, so paths may contain spaces. Unknown commands are
// reported back to the user. The loop exits on scanner EOF, when ctx is
// done, or when the user types "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers print
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("ota %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "bundle":
			if arg == "" {
				printlnFn("Usage: bundle <path>")
				continue
			}
			_ = a.Bundle(ctx, arg)

		case "checksum":
			if arg == "" {
				printlnFn("Usage: checksum <path>")
				continue
			}
			_ = a.Checksum(ctx, arg)

		case "version":
			if arg == "" {
				printlnFn("Usage: version <v>")
				continue
			}
			_ = a.Version(ctx, arg)

		case "creds":
			_ = a.Creds(ctx)

		case "storage":
			_ = a.Storage(ctx)

		case "status":
			_ = a.Status(ctx)

		case "submit":
			_ = a.Submit(ctx)

		case "bundles":
			_ = a.Bundles(ctx)

		case "install":
			if arg == "" {
				printlnFn("Usage: install <key>")
				continue
			}
			_ = a.Install(ctx, arg)

		case "releases":
			_ = a.Releases(ctx, arg)

		case "history":
			_ = a.History(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
