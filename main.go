package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidfetch-backend/internal/config"
	"vidfetch-backend/internal/download"
	"vidfetch-backend/internal/logging"
	"vidfetch-backend/internal/middleware"
	"vidfetch-backend/internal/page"
	"vidfetch-backend/internal/providers/s3archive"
	"vidfetch-backend/internal/providers/ytdlp"
	"vidfetch-backend/internal/storage"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "vidfetch",
		Short:         "Web front end for downloading videos and audio with yt-dlp",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				log.Error().Str("op", "main").Err(err).Msg("invalid configuration")
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogJSON)
			return run(cmd.Context(), cfg)
		},
	}

	// Load .env file for local development before viper reads the environment
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Str("op", "main").Err(err).Msg("failed to load .env file")
	}
	config.Setup(v)

	flags := cmd.Flags()
	flags.StringP("host", "H", config.Defaults[config.KeyServerHost].(string), "address to listen on")
	flags.IntP("port", "p", config.Defaults[config.KeyServerPort].(int), "port to listen on")
	flags.StringP("downloads-dir", "d", config.Defaults[config.KeyDownloadsDir].(string), "directory finished downloads are written to")
	flags.String("log-level", config.Defaults[config.KeyLogLevel].(string), "log level (debug, info, warn, error)")

	lo.Must0(v.BindPFlag(config.KeyServerHost, flags.Lookup("host")))
	lo.Must0(v.BindPFlag(config.KeyServerPort, flags.Lookup("port")))
	lo.Must0(v.BindPFlag(config.KeyDownloadsDir, flags.Lookup("downloads-dir")))
	lo.Must0(v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level")))

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	app, err := initialize(ctx, e, cfg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("op", "main").Str("version", version).Msgf("starting vidfetch on %s", cfg.Address())
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		app.jobs.StartCleanup(ctx)
		return nil
	})

	g.Go(func() error {
		app.files.StartJanitor(ctx, cfg.FileTTL, cfg.CleanupInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Str("op", "main").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Str("op", "main").Err(err).Msg("server stopped with error")
		return err
	}
	log.Info().Str("op", "main").Msg("server stopped")
	return nil
}

type app struct {
	jobs  *download.JobManager
	files *storage.Service
}

func initialize(ctx context.Context, e *echo.Echo, cfg *config.Config) (*app, error) {
	files, err := storage.NewOsService(cfg.DownloadsDir)
	if err != nil {
		return nil, err
	}

	extractor := ytdlp.NewService(cfg.ExtractorPath, cfg.ExtractRetries)
	if cfg.AutoInstall && cfg.ExtractorPath == "" {
		if err := extractor.Install(ctx); err != nil {
			return nil, err
		}
	}

	var archiver download.Archiver
	if cfg.ArchiveEnabled() {
		archive, err := s3archive.NewService(ctx, cfg.ArchiveBucket, cfg.ArchivePrefix, cfg.ArchiveRegion)
		if err != nil {
			return nil, err
		}
		archiver = archive
		log.Info().Str("op", "main").Str("bucket", cfg.ArchiveBucket).Msg("archiving finished downloads to s3")
	}

	jobs := download.NewJobManager()
	downloadService := download.NewService(extractor, files, archiver, jobs, download.Options{
		DownloadsDir:  cfg.DownloadsDir,
		UserAgent:     cfg.UserAgent,
		AudioFormat:   cfg.AudioFormat,
		AudioQuality:  cfg.AudioQuality(),
		Timeout:       cfg.Timeout,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	// Middleware
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.SecurityHeaders(cfg.Domain))
	e.Use(middleware.CORSConfig(cfg.Domain))

	page.NewHandler().RegisterRoutes(e)
	download.NewHandler(downloadService).RegisterRoutes(e)

	return &app{jobs: jobs, files: files}, nil
}
