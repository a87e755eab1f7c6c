package handler

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/auth"
	"github.com/ferhatb/linkstats/internal/repo"
	"github.com/ferhatb/linkstats/internal/tracker"
)

type LinkHandler struct {
	links    *repo.LinksRepo
	recorder *tracker.Recorder
}

func NewLinkHandler(links *repo.LinksRepo, recorder *tracker.Recorder) *LinkHandler {
	return &LinkHandler{links: links, recorder: recorder}
}

type CreateLinkRequest struct {
	LongURL  string   `json:"long_url" validate:"required,url"`
	ShortURL string   `json:"short_url"`
	Tags     []string `json:"tags"`
}

type CreateLinkResponse struct {
	Link repo.Link `json:"link"`
}

// CreateLink handles POST /api/v1/links. Admin only; ordinary users get
// their links from the external link-management flow.
func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	if !user.Admin {
		return internal.AccessDeniedf("unauthorized")
	}

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return internal.Validationf("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if req.ShortURL == "" {
		req.ShortURL = repo.GenerateShortURL()
	}

	link, err := h.links.Create(ctx, req.ShortURL, req.LongURL, user.Username, req.Tags)
	if err != nil {
		log.Error().Err(err).Str("short_url", req.ShortURL).Msg("failed to create link")
		return err
	}

	return c.JSON(http.StatusCreated, CreateLinkResponse{Link: *link})
}

// Redirect handles GET /:ending - resolves the short code, records the
// click, and sends the visitor on. Recording failures are logged and never
// block the redirect.
func (h *LinkHandler) Redirect(c echo.Context) error {
	ctx := c.Request().Context()
	ending := c.Param("ending")

	log.Debug().Str("short_url", ending).Msg("redirect request")

	link, err := h.links.GetByShortURL(ctx, ending)
	if err != nil {
		log.Warn().Str("short_url", ending).Msg("link not found")
		return echo.NewHTTPError(http.StatusNotFound, "link not found")
	}

	cc := tracker.ClickContext{
		IP:        clientIP(c.Request()),
		Referer:   c.Request().Referer(),
		UserAgent: c.Request().UserAgent(),
	}

	if _, err := h.recorder.Record(ctx, link, cc); err != nil {
		log.Error().Err(err).Str("short_url", ending).Msg("failed to record click")
	}

	return c.Redirect(http.StatusMovedPermanently, link.LongURL)
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return xff
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
