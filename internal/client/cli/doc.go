// Package cli provides the interactive OTA uploader command-line client.
//
// It wires configuration, the local upload history, the backend client, the
// release store and an interactive REPL. Typical flow: select the bundle and
// its checksum file (verification starts on its own once both are present),
// set the version and credentials, then submit.
//
// Key features:
//   - Chunked MD5 verification with a progress bar
//   - Credentials read without echo and shown masked
//   - Upload with byte progress and a single outcome message
//   - Backend bundle listing and install trigger
//   - Release listing straight from object storage
//   - Local history of every submission
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
