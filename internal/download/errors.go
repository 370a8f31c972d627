package download

import (
	"context"
	"errors"
	"net/http"

	"vidfetch-backend/internal/storage"
	"vidfetch-backend/pkg/models"
)

var (
	ErrNoMediaInfo   = errors.New("could not extract video information")
	ErrOutputMissing = errors.New("downloaded file was not found")
	ErrJobNotFound   = errors.New("job not found")
)

const (
	MsgURLRequired     = "URL is required"
	MsgNoMediaInfo     = "Could not extract video information. URL may be invalid or private."
	MsgSuccess         = "Download completed successfully!"
	MsgFailedPrefix    = "Download failed: "
	MsgTimeout         = "Download timed out. Please try again later."
	MsgInvalidBody     = "Invalid request body"
	MsgInvalidFilename = "Invalid filename"
	MsgFileNotFound    = "File not found"
	MsgJobNotFound     = "Job not found"
)

var kindMessages = map[models.ErrorKind]string{
	models.ErrorKindPrivate:      "This video is private and cannot be downloaded",
	models.ErrorKindUnavailable:  "Video is unavailable or has been removed",
	models.ErrorKindAuthRequired: "This video requires authentication. Try a public video.",
	models.ErrorKindForbidden:    "Access forbidden. The video may be geo-restricted or require login.",
	models.ErrorKindNotFound:     "Video not found. Please check the URL.",
}

// DescribeError turns an orchestration failure into the message shown to the user
func DescribeError(err error) string {
	switch {
	case errors.Is(err, ErrNoMediaInfo):
		return MsgNoMediaInfo
	case errors.Is(err, context.DeadlineExceeded):
		return MsgFailedPrefix + MsgTimeout
	}

	if msg, ok := kindMessages[models.KindOf(err)]; ok {
		return MsgFailedPrefix + msg
	}
	return MsgFailedPrefix + err.Error()
}

type ErrorResponse struct {
	StatusCode int
	Message    string
}

// GetErrorResponse returns appropriate HTTP response for a retrieval or status error
func GetErrorResponse(err error) ErrorResponse {
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		return ErrorResponse{http.StatusBadRequest, MsgInvalidFilename}
	case errors.Is(err, storage.ErrNotFound):
		return ErrorResponse{http.StatusNotFound, MsgFileNotFound}
	case errors.Is(err, ErrJobNotFound):
		return ErrorResponse{http.StatusNotFound, MsgJobNotFound}
	default:
		return ErrorResponse{http.StatusInternalServerError, "An unexpected error occurred. Please try again."}
	}
}
