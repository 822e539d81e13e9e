package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/checksum"
	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/client/services"
	"github.com/dmitrijs2005/otaverifier/internal/common"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
)

const (
	roleBundle   = "bundle"
	roleChecksum = "checksum"

	historyLimit = 20
	maskVisible  = 4
)

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// open opens path for role and returns it with the file it replaces. The
// caller closes old only after the uploader has switched to f, so a run
// still reading old is already superseded when its reads start failing.
func (a *App) open(role, path string) (f, old *filex.File, err error) {
	f, err = filex.Open(path)
	if err != nil {
		return nil, nil, err
	}
	old = a.files[role]
	a.files[role] = f
	return f, old, nil
}

func closeFile(f *filex.File) {
	if f != nil {
		_ = f.Close()
	}
}

// Bundle selects the bundle file.
func (a *App) Bundle(ctx context.Context, path string) error {
	f, old, err := a.open(roleBundle, path)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	a.bars.Drop(services.PhaseVerify)
	a.uploader.SelectBundle(f)
	closeFile(old)
	a.printf("Bundle: %s (%d bytes)\n", f.Name(), f.Size())
	return a.awaitVerification(ctx)
}

// Checksum selects the .md5 companion file.
func (a *App) Checksum(ctx context.Context, path string) error {
	f, old, err := a.open(roleChecksum, path)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	a.bars.Drop(services.PhaseVerify)
	a.uploader.SelectChecksum(f)
	closeFile(old)
	a.printf("Checksum file: %s\n", f.Name())
	return a.awaitVerification(ctx)
}

// awaitVerification waits for the run started by a selection and reports
// it. With only one file selected there is nothing to wait for.
func (a *App) awaitVerification(ctx context.Context) error {
	res, err := a.uploader.AwaitVerification(ctx)
	if errors.Is(err, common.ErrFilesMissing) {
		return nil
	}
	if err != nil {
		a.println("Verification interrupted:", err)
		return err
	}

	switch res.Reason {
	case checksum.ReasonDigestMismatch:
		a.printf("%s (expected %s, got %s)\n", res.Message, res.Expected, res.Actual)
	default:
		a.println(res.Message)
	}
	return nil
}

// Version sets the release version.
func (a *App) Version(ctx context.Context, version string) error {
	if err := models.ValidateVersion(version, a.config.StrictVersion); err != nil {
		a.println("Error:", err)
		return err
	}
	a.uploader.SetVersion(version)
	a.println("Version:", version)
	return nil
}

// Creds prompts for the cloud credentials. Secrets are read without echo.
func (a *App) Creds(ctx context.Context) error {
	access, err := GetSimpleText(a.reader, "Access key", a.out)
	if err != nil {
		return err
	}
	secret, err := GetSecret(a.out, "Secret key")
	if err != nil {
		return err
	}
	token, err := GetSecret(a.out, "Session token (optional)")
	if err != nil {
		return err
	}

	a.uploader.SetCredentials(models.Credentials{
		AccessKey:    access,
		SecretKey:    secret,
		SessionToken: token,
	})
	a.println("Credentials stored for this session")
	return nil
}

// Storage prompts for the optional destination bucket and region.
func (a *App) Storage(ctx context.Context) error {
	bucket, err := GetSimpleText(a.reader, "Bucket (optional)", a.out)
	if err != nil {
		return err
	}
	region, err := GetSimpleText(a.reader, "Region (optional)", a.out)
	if err != nil {
		return err
	}
	a.uploader.SetStorage(bucket, region)
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Status prints the session with secrets masked.
func (a *App) Status(ctx context.Context) error {
	s := a.uploader.Snapshot()

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", s.State)
	if s.Bundle != nil {
		fmt.Fprintf(w, "Bundle:\t%s (%d bytes)\n", s.Bundle.Name(), s.Bundle.Size())
	} else {
		fmt.Fprintf(w, "Bundle:\t-\n")
	}
	if s.Checksum != nil {
		fmt.Fprintf(w, "Checksum file:\t%s\n", s.Checksum.Name())
	} else {
		fmt.Fprintf(w, "Checksum file:\t-\n")
	}
	switch s.State {
	case services.StateVerifying:
		fmt.Fprintf(w, "Verification:\t%d%%\n", s.VerifyProgress)
	default:
		fmt.Fprintf(w, "Verification:\t%s\n", valueOr(s.Verification.Message, "-"))
	}
	fmt.Fprintf(w, "Version:\t%s\n", valueOr(s.Version, "-"))
	fmt.Fprintf(w, "Access key:\t%s\n", valueOr(models.MaskValue(s.Credentials.AccessKey, maskVisible), "-"))
	fmt.Fprintf(w, "Secret key:\t%s\n", valueOr(models.MaskValue(s.Credentials.SecretKey, maskVisible), "-"))
	fmt.Fprintf(w, "Session token:\t%s\n", valueOr(models.MaskValue(s.Credentials.SessionToken, maskVisible), "(none)"))
	fmt.Fprintf(w, "Bucket:\t%s\n", valueOr(s.Storage.Bucket, "-"))
	fmt.Fprintf(w, "Region:\t%s\n", valueOr(s.Storage.Region, "-"))
	fmt.Fprintf(w, "Public key:\t%t\n", s.PublicKey != "")
	fmt.Fprintf(w, "Ready to submit:\t%t\n", s.Submittable())
	if s.Outcome != nil {
		fmt.Fprintf(w, "Last result:\t%s\n", s.Outcome.Message)
	}
	if s.Version != "" {
		fmt.Fprintf(w, "Last upload:\t%s\n", a.lastUpload(ctx, s.Version))
	}
	return w.Flush()
}

// lastUpload describes the newest successful submission of version.
func (a *App) lastUpload(ctx context.Context, version string) string {
	rec, err := a.uploader.LastUpload(ctx, version)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "-"
	case err != nil:
		a.logger.Warn(ctx, "failed to read upload history", "error", err)
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", rec.CompletedAt.Local().Format(time.DateTime), rec.BundleName)
}

// Submit uploads the verified bundle and prints the outcome.
func (a *App) Submit(ctx context.Context) error {
	out, err := a.uploader.Submit(ctx)
	if err != nil {
		a.println("Cannot submit:", err)
		return err
	}
	a.bars.Drop(services.PhaseUpload)

	if out.Success {
		a.println("Success:", out.Message)
		return nil
	}
	a.println("Error:", out.Message)
	return nil
}

// Bundles lists the bundles known to the backend.
func (a *App) Bundles(ctx context.Context) error {
	keys, err := a.api.ListBundles(ctx)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	if len(keys) == 0 {
		a.println("No bundles")
		return nil
	}
	for _, k := range keys {
		a.println(" ", k)
	}
	return nil
}

// Install asks the backend to roll out bundle key.
func (a *App) Install(ctx context.Context, key string) error {
	resp, err := a.api.InstallBundle(ctx, key)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	a.println(string(b))
	return nil
}

// Releases lists released versions in the session's bucket. With a version
// it lists the objects of that release instead.
func (a *App) Releases(ctx context.Context, version string) error {
	s := a.uploader.Snapshot()
	if version != "" {
		return a.release(ctx, s, version)
	}
	releases, err := a.releases.ListReleases(ctx, s.Credentials, s.Storage)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	if len(releases) == 0 {
		a.println("No releases")
		return nil
	}

	sort.Slice(releases, func(i, j int) bool { return releases[i].Version < releases[j].Version })
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tOBJECTS")
	for _, r := range releases {
		fmt.Fprintf(w, "%s\t%d\n", r.Version, len(r.Objects))
	}
	return w.Flush()
}

func (a *App) release(ctx context.Context, s services.Session, version string) error {
	rel, err := a.releases.FindRelease(ctx, s.Credentials, s.Storage, version)
	if errors.Is(err, common.ErrNotFound) {
		a.println("Release not found:", version)
		return err
	}
	if err != nil {
		a.println("Error:", err)
		return err
	}

	a.printf("Release %s:\n", rel.Version)
	for _, o := range rel.Objects {
		a.println(" ", o)
	}
	return nil
}

// History prints the most recent submissions.
func (a *App) History(ctx context.Context) error {
	recs, err := a.uploader.History(ctx, historyLimit)
	if err != nil {
		a.println("Error:", err)
		return err
	}
	if len(recs) == 0 {
		a.println("No uploads yet")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tVERSION\tBUNDLE\tSTATUS\tMESSAGE")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Version, r.BundleName, r.Status, r.Message)
	}
	return w.Flush()
}
