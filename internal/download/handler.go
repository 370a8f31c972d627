package download

import (
	"mime"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handler handles HTTP requests for download operations
type Handler struct {
	service *Service
}

// NewHandler creates a new download handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers download routes with the Echo router
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/download", h.Download)
	e.GET("/download_file/:filename", h.DownloadFile)
	e.GET("/download/status/:id", h.GetJobStatus)
	e.GET("/health", h.Health)
}

// Download handles POST /download
// It blocks until the backend finishes and always answers 200 for orchestration outcomes
func (h *Handler) Download(c echo.Context) error {
	var req DownloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, DownloadResult{
			Success: false,
			Message: MsgInvalidBody,
		})
	}

	jobID := c.Response().Header().Get(echo.HeaderXRequestID)
	result := h.service.Download(c.Request().Context(), jobID, req)
	return c.JSON(http.StatusOK, result)
}

// DownloadFile handles GET /download_file/:filename
func (h *Handler) DownloadFile(c echo.Context) error {
	name, err := filenameParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, DownloadResult{Message: MsgInvalidFilename})
	}

	f, err := h.service.OpenFile(name)
	if err != nil {
		resp := GetErrorResponse(err)
		if resp.StatusCode == http.StatusInternalServerError {
			log.Error().Str("op", "download/file").Err(err).Msgf("failed to open %q", name)
		}
		return c.JSON(resp.StatusCode, DownloadResult{Message: resp.Message})
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Error().Str("op", "download/file").Err(err).Msgf("failed to stat %q", name)
		resp := GetErrorResponse(err)
		return c.JSON(resp.StatusCode, DownloadResult{Message: resp.Message})
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEOctetStream)
	c.Response().Header().Set(echo.HeaderContentDisposition, attachmentDisposition(name))
	http.ServeContent(c.Response(), c.Request(), name, info.ModTime(), f)
	return nil
}

// GetJobStatus handles GET /download/status/:id
func (h *Handler) GetJobStatus(c echo.Context) error {
	status, err := h.service.JobStatus(c.Param("id"))
	if err != nil {
		resp := GetErrorResponse(err)
		return c.JSON(resp.StatusCode, DownloadResult{Message: resp.Message})
	}
	return c.JSON(http.StatusOK, status)
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Health())
}

// filenameParam mirrors the router, which matches against the raw path when one is set
func filenameParam(c echo.Context) (string, error) {
	name := c.Param("filename")
	if c.Request().URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func attachmentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
