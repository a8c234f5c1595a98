// Package cli implements galleryctl, an operator tool for inspecting and
// maintaining the identity gallery and attendance ledger without going
// through the HTTP API.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/backend"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/config"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/face"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/matcher"
	"github.com/saturnino-fabrica-de-software/rollcall/internal/service"
)

// env is everything a subcommand needs, opened once per invocation.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *backend.Backend
	service *service.RecognitionService
}

func (e *env) close() {
	if e.backend != nil {
		e.backend.Close()
	}
}

// NewRootCommand builds the galleryctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "galleryctl",
		Short: "Inspect and maintain the face gallery and attendance ledger",
		Long: `galleryctl works directly against the configured storage backend
(GALLERY_BACKEND, GALLERY_DIR, ATTENDANCE_DIR, DATABASE_URL), the same
settings the API server reads. A .env file in the working directory is
honored.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool("json", false, "Output as JSON")
	root.PersistentFlags().Bool("verbose", false, "Log storage warnings to stderr")

	root.AddCommand(
		newIdentitiesCommand(),
		newAttendanceCommand(),
		newVerifyCommand(),
	)
	return root
}

// Execute runs galleryctl with os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelError
	if mustGetBool(cmd, "verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	faceProvider, err := face.NewFaceProvider(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	m, err := matcher.New(cfg.Matcher, cfg.HNSWMinSize, cfg.HNSWCandidates, logger)
	if err != nil {
		b.Close()
		return nil, err
	}

	svc := service.NewRecognitionService(b.Gallery, faceProvider, m, b.Attendance, nil, logger).
		WithThreshold(cfg.MatchThreshold).
		WithProviderName(cfg.ProviderType)

	return &env{cfg: cfg, logger: logger, backend: b, service: svc}, nil
}

// run opens the environment and hands it to fn.
func run(fn func(ctx context.Context, cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openEnv(ctx, cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(ctx, cmd, args, e)
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
