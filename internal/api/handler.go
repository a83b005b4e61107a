// Package api serves a read-only JSON view of the marketplace over HTTP.
package api

import (
	"errors"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"arclight-go/internal/arclight"
)

type Handler struct {
	resolver *arclight.Resolver
	ledger   arclight.Ledger
	logger   arclight.Logger
}

func NewHandler(resolver *arclight.Resolver, ledger arclight.Ledger, logger arclight.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/users/:address", h.handleUser)
	e.GET("/users/:address/posts", h.handlePosts)
	e.GET("/users/:address/avatar", h.handleAvatar)
	e.GET("/releases", h.handleReleases)
	e.GET("/releases/:id", h.handleRelease)
	e.GET("/records/:id", h.handleRecord)
	e.GET("/records/:id/data", h.handleRecordData)
}

type profileResponse struct {
	Address      arclight.Address `json:"address"`
	Name         string           `json:"name"`
	Identity     string           `json:"identity"`
	HasAvatar    bool             `json:"has_avatar"`
	Location     string           `json:"location"`
	Website      string           `json:"website"`
	Introduction string           `json:"introduction"`
	NeteaseID    string           `json:"neteaseid"`
	SoundcloudID string           `json:"soundcloudid"`
	BandcampID   string           `json:"bandcampid"`
	Errors       []string         `json:"errors,omitempty"`
}

func (h *Handler) handleUser(c echo.Context) error {
	ctx := c.Request().Context()
	address := arclight.Address(c.Param("address"))

	p, err := h.resolver.ResolveProfile(ctx, address)
	if p == nil {
		return h.fail(c, err)
	}
	resp := profileResponse{
		Address:      p.Address,
		Name:         p.Identity.DisplayName,
		Identity:     p.Identity.Kind.String(),
		HasAvatar:    p.HasAvatar,
		Location:     p.Location,
		Website:      p.Website,
		Introduction: p.Introduction,
		NeteaseID:    p.NeteaseID,
		SoundcloudID: p.SoundcloudID,
		BandcampID:   p.BandcampID,
	}
	if err != nil {
		h.logger.Warn("partial profile", "address", address, "error", err)
		resp.Errors = []string{err.Error()}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) handlePosts(c echo.Context) error {
	ctx := c.Request().Context()

	entries, err := h.resolver.ResolvePostIndex(ctx, arclight.Address(c.Param("address")))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) handleAvatar(c echo.Context) error {
	ctx := c.Request().Context()

	media, found, err := h.resolver.ResolveAvatarMedia(ctx, arclight.Address(c.Param("address")))
	if err != nil {
		return h.fail(c, err)
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no avatar"})
	}
	return serveBlob(c, media.ContentType, media.Data)
}

func (h *Handler) handleReleases(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := arclight.ParseReleaseKind(c.QueryParam("kind"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	genre := c.QueryParam("genre")

	ids, err := h.resolver.ResolveReleaseList(ctx, kind, genre)
	if err != nil {
		return h.fail(c, err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return c.JSON(http.StatusOK, echo.Map{"kind": kind, "genre": genre, "ids": ids})
}

func (h *Handler) handleRelease(c echo.Context) error {
	ctx := c.Request().Context()

	info, err := h.resolver.FetchRelease(ctx, arclight.RecordID(c.Param("id")))
	if err != nil {
		if errors.Is(err, arclight.ErrUnknownRecordKind) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "record is not a release"})
		}
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) handleRecord(c echo.Context) error {
	ctx := c.Request().Context()

	meta, err := h.ledger.FetchRecord(ctx, arclight.RecordID(c.Param("id")))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, meta)
}

// handleRecordData streams a payload as stored. Media payloads are
// ciphertext and go out as application/octet-stream.
func (h *Handler) handleRecordData(c echo.Context) error {
	ctx := c.Request().Context()
	id := arclight.RecordID(c.Param("id"))

	meta, err := h.ledger.FetchRecord(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	data, err := h.ledger.FetchRecordData(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}

	contentType := meta.Tags.Value(arclight.TagContentType)
	if kind, err := meta.Tags.Kind(); err == nil && arclight.IsMediaKind(kind) {
		contentType = ""
	}
	return serveBlob(c, contentType, data)
}

func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, arclight.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "record not found"})
	case errors.Is(err, arclight.ErrLedgerUnavailable):
		h.logger.Warn("ledger unavailable", "path", c.Path(), "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	default:
		h.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}

// serveBlob writes author-supplied bytes. The declared type is honored only
// for images and audio; anything else goes out as application/octet-stream
// so a browser never renders it as a document.
func serveBlob(c echo.Context, contentType string, data []byte) error {
	c.Response().Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
	return c.Blob(http.StatusOK, servedContentType(contentType), data)
}

func servedContentType(t string) string {
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return echo.MIMEOctetStream
	}
	switch {
	case mediaType == "image/svg+xml":
		return echo.MIMEOctetStream
	case strings.HasPrefix(mediaType, "image/"), strings.HasPrefix(mediaType, "audio/"):
		return mediaType
	}
	return echo.MIMEOctetStream
}
