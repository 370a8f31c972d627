package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidfetch-backend/pkg/models"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	progressInterval = 500 * time.Millisecond
	retryBackoff     = 2 * time.Second
)

// attemptFunc runs a prepared command once against url
type attemptFunc func(ctx context.Context, cmd *ytdlp.Command, url string) (*models.MediaInfo, error)

// Service drives the yt-dlp executable through go-ytdlp
type Service struct {
	executable string
	retries    int
	backoff    time.Duration
	attempt    attemptFunc
}

// NewService creates a backend. An empty executable means yt-dlp from PATH
// or the go-ytdlp cache.
func NewService(executable string, retries int) *Service {
	return &Service{
		executable: executable,
		retries:    max(retries, 0),
		backoff:    retryBackoff,
		attempt:    runCommand,
	}
}

// Install downloads a yt-dlp binary into the go-ytdlp cache when none is available
func (s *Service) Install(ctx context.Context) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to install yt-dlp: %w", err)
	}
	log.Info().Str("op", "ytdlp/install").Str("executable", resolved.Executable).Msg("yt-dlp ready")
	return nil
}

// Resolve fetches metadata without downloading anything
func (s *Service) Resolve(ctx context.Context, url string, opts models.ExtractOptions) (*models.MediaInfo, error) {
	cmd := s.command(opts).SkipDownload()
	return s.runWithRetry(ctx, "resolve", cmd, url)
}

// Download fetches the media described by opts and reports where it was written
func (s *Service) Download(ctx context.Context, url string, opts models.ExtractOptions, progress models.ProgressFunc) (*models.MediaInfo, error) {
	cmd := s.command(opts)
	if progress != nil {
		cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			progress(percentOf(update))
		})
	}
	return s.runWithRetry(ctx, "download", cmd, url)
}

func (s *Service) command(opts models.ExtractOptions) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		PrintJSON().
		Output(opts.OutputTemplate)

	if s.executable != "" {
		cmd.SetExecutable(s.executable)
	}
	if opts.Format != "" {
		cmd.Format(opts.Format)
	}
	if opts.UserAgent != "" {
		cmd.AddHeaders("User-Agent:" + opts.UserAgent)
	}
	if opts.SkipUnavailableFragments {
		cmd.SkipUnavailableFragments()
	}
	if opts.ExtractAudio {
		cmd.ExtractAudio()
		if opts.AudioFormat != "" {
			cmd.AudioFormat(opts.AudioFormat)
		}
		if opts.AudioQuality != "" {
			cmd.AudioQuality(opts.AudioQuality)
		}
	}
	return cmd
}

// runWithRetry repeats attempts that failed for an unclassified reason
func (s *Service) runWithRetry(ctx context.Context, stage string, cmd *ytdlp.Command, url string) (*models.MediaInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			log.Info().Str("op", "ytdlp/"+stage).Int("attempt", attempt+1).Msgf("retrying %s", url)
		}

		info, err := s.attempt(ctx, cmd, url)
		if err == nil {
			return info, nil
		}
		lastErr = err
		log.Warn().Str("op", "ytdlp/"+stage).Int("attempt", attempt+1).Err(err).Msgf("attempt failed for %s", url)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if models.KindOf(err) != models.ErrorKindUnknown {
			break
		}
	}

	return nil, lastErr
}

func runCommand(ctx context.Context, cmd *ytdlp.Command, url string) (*models.MediaInfo, error) {
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, wrapError(res, err)
	}
	return infoFromResult(res)
}

// infoFromResult returns the first item yt-dlp reported, or nil when it reported none
func infoFromResult(res *ytdlp.Result) (*models.MediaInfo, error) {
	if res == nil {
		return nil, nil
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	first, ok := lo.Find(infos, func(info *ytdlp.ExtractedInfo) bool { return info != nil })
	if !ok {
		return nil, nil
	}
	return &models.MediaInfo{
		Title:    lo.FromPtr(first.Title),
		Filename: lo.FromPtr(first.Filename),
	}, nil
}

// wrapError turns a failed run into a classified ExtractionError
func wrapError(res *ytdlp.Result, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := ""
	if res != nil {
		msg = lastErrorLine(res.Stderr)
	}
	if msg == "" {
		msg = err.Error()
	}
	return &models.ExtractionError{
		Kind:    models.ClassifyMessage(msg),
		Message: msg,
		Err:     err,
	}
}

// lastErrorLine picks the final "ERROR:" line yt-dlp wrote, falling back to the last non-empty line
func lastErrorLine(stderr string) string {
	lines := lo.Compact(lo.Map(strings.Split(stderr, "\n"), func(line string, _ int) string {
		return strings.TrimSpace(line)
	}))
	if len(lines) == 0 {
		return ""
	}

	if line, _, ok := lo.FindLastIndexOf(lines, func(line string) bool { return strings.HasPrefix(line, "ERROR:") }); ok {
		return line
	}
	return lines[len(lines)-1]
}

func percentOf(update ytdlp.ProgressUpdate) float64 {
	if update.TotalBytes <= 0 {
		return 0
	}
	return min(float64(update.DownloadedBytes)/float64(update.TotalBytes)*100, 100)
}
