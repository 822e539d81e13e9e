package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
	args  []string
}

func (f *fakeExec) record(name, arg string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, arg)
	return nil
}

func (f *fakeExec) Bundle(ctx context.Context, path string) error { return f.record("bundle", path) }
func (f *fakeExec) Checksum(ctx context.Context, path string) error {
	return f.record("checksum", path)
}
func (f *fakeExec) Version(ctx context.Context, v string) error   { return f.record("version", v) }
func (f *fakeExec) Creds(ctx context.Context) error               { return f.record("creds", "") }
func (f *fakeExec) Storage(ctx context.Context) error             { return f.record("storage", "") }
func (f *fakeExec) Status(ctx context.Context) error              { return f.record("status", "") }
func (f *fakeExec) Submit(ctx context.Context) error              { return f.record("submit", "") }
func (f *fakeExec) Bundles(ctx context.Context) error             { return f.record("bundles", "") }
func (f *fakeExec) Install(ctx context.Context, key string) error { return f.record("install", key) }
func (f *fakeExec) Releases(ctx context.Context, v string) error  { return f.record("releases", v) }
func (f *fakeExec) History(ctx context.Context) error             { return f.record("history", "") }

func silencePrint(t *testing.T) *[]string {
	t.Helper()
	var printed []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, 0, len(a))
		for _, v := range a {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		printed = append(printed, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &printed
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	silencePrint(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"bundle /tmp/my bundle.raucb",
		"checksum  /tmp/b.md5 ",
		"version v1.2.3",
		"creds",
		"storage",
		"status",
		"submit",
		"bundles",
		"install b-1",
		"releases 2.0.0",
		"history",
		"foobar",
		"",
		"exit",
		"status",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	want := []string{"bundle", "checksum", "version", "creds", "storage", "status", "submit", "bundles", "install", "releases", "history"}
	if strings.Join(exec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
	if exec.args[0] != "/tmp/my bundle.raucb" {
		t.Fatalf("path with spaces not preserved: %q", exec.args[0])
	}
	if exec.args[1] != "/tmp/b.md5" {
		t.Fatalf("argument not trimmed: %q", exec.args[1])
	}
	if exec.args[8] != "b-1" {
		t.Fatalf("install key = %q", exec.args[8])
	}
	if exec.args[9] != "2.0.0" {
		t.Fatalf("release version = %q", exec.args[9])
	}
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	printed := silencePrint(t)

	input := strings.NewReader("bundle\nchecksum\nversion\ninstall\nfoobar\nquit\n")
	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}

	joined := strings.Join(*printed, "\n")
	for _, want := range []string{"Usage: bundle <path>", "Usage: checksum <path>", "Usage: version <v>", "Usage: install <key>", "Unknown command: foobar", "Bye!"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("output misses %q:\n%s", want, joined)
		}
	}
}

func TestRunREPL_StopsOnCanceledContext(t *testing.T) {
	silencePrint(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "s" }, bufio.NewScanner(strings.NewReader("status\n")))
	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
