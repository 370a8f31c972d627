package page

import (
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed static/index.html
var indexHTML []byte

// Handler serves the download form
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterRoutes registers page routes with the Echo instance
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Index)
}

// Index handles GET /
func (h *Handler) Index(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache")
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, indexHTML)
}
