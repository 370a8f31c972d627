package download

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"vidfetch-backend/internal/storage"
	"vidfetch-backend/pkg/models"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"
)

const (
	videoFormat = "best"
	audioFormat = "bestaudio/best"

	outputTemplate = "%(title)s.%(ext)s"
)

type Service struct {
	extractor Extractor
	storage   Storage
	archiver  Archiver
	jobs      *JobManager
	opts      Options
	slots     *semaphore.Weighted
	outputs   *keyedMutex
}

// NewService wires the orchestration. archiver may be nil.
func NewService(extractor Extractor, files Storage, archiver Archiver, jobs *JobManager, opts Options) *Service {
	return &Service{
		extractor: extractor,
		storage:   files,
		archiver:  archiver,
		jobs:      jobs,
		opts:      opts,
		slots:     semaphore.NewWeighted(int64(max(opts.MaxConcurrent, 1))),
		outputs:   newKeyedMutex(),
	}
}

// BuildOptions returns the extraction options for a kind of media
func (s *Service) BuildOptions(kind models.Kind) models.ExtractOptions {
	opts := models.ExtractOptions{
		OutputTemplate:           filepath.Join(s.opts.DownloadsDir, outputTemplate),
		Format:                   videoFormat,
		UserAgent:                s.opts.UserAgent,
		SkipUnavailableFragments: true,
	}
	if kind == models.KindAudio {
		opts.Format = audioFormat
		opts.ExtractAudio = true
		opts.AudioFormat = s.opts.AudioFormat
		opts.AudioQuality = s.opts.AudioQuality
	}
	return opts
}

// Download fetches req.URL and reports the stored filename. Failures are reported in the result, never as an error.
func (s *Service) Download(ctx context.Context, jobID string, req DownloadRequest) DownloadResult {
	url := strings.TrimSpace(req.URL)
	kind := models.ParseKind(req.Format)

	if !s.jobs.Store(jobID, url, kind) && jobID != "" {
		log.Warn().Str("op", "download/service").Str("job_id", jobID).Msg("job id already in use, download will not be tracked")
		jobID = ""
	}

	if url == "" {
		s.jobs.MarkFailed(jobID, MsgURLRequired)
		return DownloadResult{Success: false, Message: MsgURLRequired}
	}

	logger := log.With().Str("op", "download/service").Str("job_id", jobID).Str("kind", kind.String()).Logger()
	logger.Info().Msgf("downloading %s", url)

	started := time.Now()
	filename, err := s.fetch(ctx, jobID, url, kind)
	if err != nil {
		msg := DescribeError(err)
		s.jobs.MarkFailed(jobID, msg)
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg(msg)
		return DownloadResult{Success: false, Message: msg}
	}

	s.jobs.MarkCompleted(jobID, filename)
	logger.Info().Str("filename", filename).Dur("elapsed", time.Since(started)).Msg("download completed")
	return DownloadResult{Success: true, Message: MsgSuccess, Filename: filename}
}

func (s *Service) fetch(ctx context.Context, jobID, url string, kind models.Kind) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.slots.Release(1)

	opts := s.BuildOptions(kind)

	info, err := s.extractor.Resolve(ctx, url, opts)
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", ErrNoMediaInfo
	}

	// Two requests for the same title write the same output path
	unlock, err := s.outputs.Lock(ctx, outputKey(info))
	if err != nil {
		return "", err
	}
	defer unlock()

	downloaded, err := s.extractor.Download(ctx, url, opts, func(percent float64) {
		s.jobs.UpdateProgress(jobID, percent)
	})
	if err != nil {
		return "", err
	}
	if downloaded == nil || downloaded.Filename == "" {
		downloaded = info
	}

	filename := OutputFilename(downloaded.Filename, kind, s.opts.AudioFormat)
	exists, err := s.storage.Exists(filename)
	if err != nil && !errors.Is(err, storage.ErrInvalidName) {
		log.Warn().Str("op", "download/service").Err(err).Msgf("failed to check %q", filename)
	}
	if !exists {
		return "", ErrOutputMissing
	}

	s.archive(ctx, filename)
	return filename, nil
}

func (s *Service) archive(ctx context.Context, filename string) {
	if s.archiver == nil {
		return
	}

	f, err := s.storage.Open(filename)
	if err != nil {
		log.Warn().Str("op", "download/archive").Err(err).Msgf("failed to open %s", filename)
		return
	}
	defer f.Close()

	if err := s.archiver.Archive(ctx, filename, f); err != nil {
		log.Warn().Str("op", "download/archive").Err(err).Msgf("failed to archive %s", filename)
		return
	}
	log.Info().Str("op", "download/archive").Msgf("archived %s", filename)
}

// OpenFile opens a finished download for streaming
func (s *Service) OpenFile(name string) (afero.File, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	return s.storage.Open(name)
}

func (s *Service) JobStatus(jobID string) (JobStatusResponse, error) {
	status, ok := s.jobs.Get(jobID)
	if !ok {
		return JobStatusResponse{}, ErrJobNotFound
	}
	return status, nil
}

func (s *Service) Health() HealthResponse {
	resp := HealthResponse{
		Status:     "healthy",
		ActiveJobs: s.jobs.ActiveCount(),
		Timestamp:  time.Now().UTC(),
	}
	usage, err := s.storage.Usage()
	if err != nil {
		log.Warn().Str("op", "download/health").Err(err).Msg("failed to read storage usage")
		return resp
	}
	resp.Files = usage.Files
	resp.Bytes = usage.Bytes
	return resp
}

// OutputFilename derives the stored filename from the path the backend reported.
// Audio extraction replaces the container extension after the path was reported.
func OutputFilename(reported string, kind models.Kind, audioExt string) string {
	if reported == "" {
		return ""
	}
	name := filepath.Base(reported)
	if kind == models.KindAudio {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + strings.TrimPrefix(audioExt, ".")
	}
	return name
}

func outputKey(info *models.MediaInfo) string {
	if info.Filename == "" {
		return info.Title
	}
	name := filepath.Base(info.Filename)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
