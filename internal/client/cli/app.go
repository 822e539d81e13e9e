package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/otaverifier/internal/client/client"
	"github.com/dmitrijs2005/otaverifier/internal/client/config"
	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/client/services"
	"github.com/dmitrijs2005/otaverifier/internal/client/storage"
	"github.com/dmitrijs2005/otaverifier/internal/filex"
	"github.com/dmitrijs2005/otaverifier/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// dataDir holds the upload history when its DSN is a bare file name.
const dataDir = ".otaverifier"

// releaseLister is the part of storage.ReleaseStore the CLI uses.
type releaseLister interface {
	ListReleases(ctx context.Context, creds models.Credentials, st models.Storage) ([]models.Release, error)
	FindRelease(ctx context.Context, creds models.Credentials, st models.Storage, version string) (*models.Release, error)
}

type App struct {
	config   *config.Config
	api      client.Client
	uploader *services.UploaderService
	releases releaseLister
	repos    *client.Repositories
	bars     *progressBars
	logger   logging.Logger

	reader *bufio.Reader
	out    io.Writer

	modeMu sync.Mutex
	mode   Mode

	// files are the opened selections, closed when replaced.
	files map[string]*filex.File
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewJSONLogger(os.Stderr, c.LogLevel)

	dsn, err := historyDSN(c.HistoryDSN)
	if err != nil {
		return nil, err
	}

	repos, err := client.InitDatabase(ctx, dsn)
	if err != nil {
		logger.Error(ctx, "error initializing database", "dsn", dsn, "error", err)
		return nil, err
	}

	api := client.NewHTTPClient(c.BaseURL, c.RequestTimeout)
	bars := newProgressBars(os.Stdout)

	uploader := services.NewUploaderService(api,
		services.WithHistory(repos.Uploads),
		services.WithLogger(logger),
		services.WithProgress(bars.Update),
		services.WithStrictVersion(c.StrictVersion),
	)

	return &App{
		config:   c,
		api:      api,
		uploader: uploader,
		releases: storage.NewReleaseStore(c.S3Endpoint, c.ReleasePrefix),
		repos:    repos,
		bars:     bars,
		logger:   logger,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		mode:     ModeOffline,
		files:    map[string]*filex.File{},
	}, nil
}

// historyDSN places a bare file name under the data directory; anything
// else (paths, URIs, ":memory:") is used as is.
func historyDSN(dsn string) (string, error) {
	if dsn == "" || strings.ContainsAny(dsn, `/\:`) {
		return dsn, nil
	}
	dir, err := filex.EnsureSubdDir(dataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dsn), nil
}

func (a *App) Mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.modeMu.Unlock()

	if changed {
		a.logger.Info(context.Background(), "switched mode", "mode", string(mode))
	}
}

func (a *App) getStatus() string {
	s := a.uploader.State().String()
	if m := a.Mode(); m != "" {
		s = s + " " + string(m)
	}
	return "(" + s + ")"
}

func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.println("Welcome to the OTA bundle uploader (type 'help' for commands)")

	a.probe(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// Close stops background work and releases the history database and the
// opened files.
func (a *App) Close() {
	a.uploader.Close()
	for role, f := range a.files {
		_ = f.Close()
		delete(a.files, role)
	}
	if a.repos != nil {
		if err := a.repos.Close(); err != nil {
			a.logger.Warn(context.Background(), "failed to close history", "error", err)
		}
	}
}

func (a *App) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.api.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// StartOnlineStatusWatcher pings the backend every interval and keeps the
// prompt's online/offline mode current until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}
