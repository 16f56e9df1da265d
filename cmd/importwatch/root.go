// Command importwatch follows the import of one user against a running
// matjip server. With --file it uploads a Naver export first; without it,
// it resumes watching a batch that is still being enriched.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/matjip/internal/lifecycle"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/sources/naver"
)

const (
	envServer = "MATJIP_SERVER_URL"
	envUser   = "MATJIP_USER_ID"

	defaultServer = "http://localhost:8080"
)

type options struct {
	server   string
	user     string
	file     string
	interval time.Duration
	wait     time.Duration
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "importwatch",
		Short: "Upload a Naver export and follow its enrichment",
		Long: `importwatch talks to a running matjip server on behalf of one user.

With --file it uploads a Naver shared-folder export and follows the batch
until enrichment finishes. Without it, it looks for an import that is still
being enriched and follows that one.

--server and --user fall back to MATJIP_SERVER_URL and MATJIP_USER_ID.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolveEnv(cmd)
			return watch(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", defaultServer, "matjip base URL (env "+envServer+")")
	f.StringVarP(&opts.user, "user", "u", "", "user id sent as "+lifecycle.UserHeader+" (env "+envUser+")")
	f.StringVarP(&opts.file, "file", "f", "", "Naver export to upload")
	f.DurationVar(&opts.interval, "interval", lifecycle.DefaultPollInterval, "status poll interval")
	f.DurationVar(&opts.wait, "wait", 10*time.Second, "how long to look for a running import when no file is given")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")

	return cmd
}

// resolveEnv fills unset flags from the environment, after .env is loaded.
func (o *options) resolveEnv(cmd *cobra.Command) {
	if v := os.Getenv(envServer); v != "" && !cmd.Flags().Changed("server") {
		o.server = v
	}
	if v := os.Getenv(envUser); v != "" && !cmd.Flags().Changed("user") {
		o.user = v
	}
}

func watch(ctx context.Context, opts *options) error {
	if opts.user == "" {
		return errors.New("a user id is required (--user or " + envUser + ")")
	}

	loggerClient := logger.New(opts.logLevel, true)
	defer func() { _ = loggerClient.Sync() }()

	api := &lifecycle.HTTPHistory{
		BaseURL: opts.server,
		UserID:  opts.user,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	lc := lifecycle.New(api, loggerClient, lifecycle.WithPollInterval(opts.interval))
	defer lc.Close()

	done := make(chan lifecycle.Phase, 1)
	unsubscribe := lc.Subscribe(func(p lifecycle.Phase) {
		loggerClient.Info("phase changed", logger.String("phase", p.String()))
		if p.Terminal() {
			select {
			case done <- p:
			default:
			}
		}
	})
	defer unsubscribe()

	if opts.file != "" {
		if err := submit(ctx, lc, api, opts.file); err != nil {
			return err
		}
	} else if !awaitRecovery(ctx, lc, opts.wait) {
		loggerClient.Info("no import in progress")
		return nil
	}

	select {
	case p := <-done:
		if p.Kind == lifecycle.KindFailed {
			return fmt.Errorf("import failed: %s", p.Message)
		}
		return nil
	case <-ctx.Done():
		loggerClient.Info("⏳ Stopped watching, the server keeps enriching")
		return nil
	}
}

// submit drives the fetch and save phases for a local export file.
func submit(ctx context.Context, lc *lifecycle.Lifecycle, api *lifecycle.HTTPHistory, path string) error {
	lc.StartFetching()
	f, err := os.Open(path)
	if err != nil {
		lc.Fail("cannot read export")
		return fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	bookmarks, _, err := naver.Parse(f)
	if err != nil {
		lc.Fail("invalid export")
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		lc.Fail("cannot read export")
		return fmt.Errorf("rewind export: %w", err)
	}

	lc.StartSaving(len(bookmarks))
	batch, err := api.SubmitNaver(ctx, f)
	if err != nil {
		lc.Fail("import failed")
		return err
	}
	if batch.ID == "" {
		lc.Complete(0)
		return nil
	}
	lc.StartEnriching(batch.ID)
	return nil
}

// awaitRecovery reports whether the lifecycle picked up a running batch.
func awaitRecovery(ctx context.Context, lc *lifecycle.Lifecycle, wait time.Duration) bool {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		if lc.Phase().Kind != lifecycle.KindIdle {
			return true
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
