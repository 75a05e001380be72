package comics

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"comicshelf/internal/events"
	"comicshelf/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ImportFunc imports the CSV saved at path.
type ImportFunc func(ctx context.Context, path string) error

// Publisher receives status toggles.
type Publisher interface {
	BroadcastJSON(v any)
}

type Handler struct {
	Store          *Store
	Import         ImportFunc
	Publisher      Publisher
	UploadDir      string
	MaxUploadBytes int64
	logger         *slog.Logger
}

func NewHandler(store *Store, importFn ImportFunc, publisher Publisher, uploadDir string, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		Store:          store,
		Import:         importFn,
		Publisher:      publisher,
		UploadDir:      uploadDir,
		MaxUploadBytes: maxUploadBytes,
		logger:         logging.OrDiscard(logger).With(slog.String("component", "http")),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.limitBody, CSRFMiddleware())
	rg.GET("/", h.index)
	rg.GET("/comics", h.index)
	rg.GET("/api/comics", h.list)
	rg.GET("/api/comics/:id", h.getByID)
	rg.POST("/update_status/:id", h.toggleStatus)
	rg.GET("/upload", h.uploadForm)
	rg.POST("/upload", h.upload)
}

// RegisterErrorPages installs the 404 fallback and the panic page on the engine.
// Call it before any other engine middleware so panics anywhere are caught.
func (h *Handler) RegisterErrorPages(engine *gin.Engine) {
	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("panic serving request",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered))
		h.serverError(c)
	}))
	engine.NoRoute(h.notFound)
}

type pageData struct {
	Title     string
	Sort      string
	Groups    []Group
	CSRFToken string
}

func (h *Handler) html(c *gin.Context, code int, name string, data pageData) {
	data.CSRFToken = csrfToken(c)
	c.Render(code, render.HTML{Template: pages, Name: name, Data: data})
}

func (h *Handler) limitBody(c *gin.Context) {
	if h.MaxUploadBytes > 0 && c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	}
	c.Next()
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func (h *Handler) notFound(c *gin.Context) {
	if isAPIPath(c.Request.URL.Path) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.html(c, http.StatusNotFound, "404.html", pageData{Title: "Not found"})
}

func (h *Handler) serverError(c *gin.Context) {
	if isAPIPath(c.Request.URL.Path) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.html(c, http.StatusInternalServerError, "500.html", pageData{Title: "Error"})
	c.Abort()
}

func (h *Handler) index(c *gin.Context) {
	sort := NormalizeSort(c.Query("sort"))
	groups, err := h.Store.ListSorted(c.Request.Context(), sort)
	if err != nil {
		h.logger.Error("list comics", slog.Any("error", err))
		h.serverError(c)
		return
	}
	if len(groups) == 0 {
		h.html(c, http.StatusOK, "empty.html", pageData{Title: "No comics"})
		return
	}
	h.html(c, http.StatusOK, "comics.html", pageData{Title: "Comics", Sort: sort, Groups: groups})
}

func (h *Handler) list(c *gin.Context) {
	sort := NormalizeSort(c.Query("sort"))
	groups, err := h.Store.ListSorted(c.Request.Context(), sort)
	if err != nil {
		h.logger.Error("list comics", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	total := 0
	for _, g := range groups {
		total += len(g.Comics)
	}
	if groups == nil {
		groups = []Group{}
	}
	c.JSON(http.StatusOK, gin.H{
		"sort":   sort,
		"total":  total,
		"groups": groups,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	comic, err := h.Store.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get comic", slog.Int64("comic_id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if comic == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, comic)
}

func (h *Handler) toggleStatus(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid comic id"})
		return
	}
	comic, err := h.Store.ToggleStatus(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Comic not found"})
		return
	}
	if errors.Is(err, ErrBusy) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "An import is running, try again shortly"})
		return
	}
	if err != nil {
		h.logger.Error("toggle status", slog.Int64("comic_id", id), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "update failed"})
		return
	}

	if h.Publisher != nil {
		h.Publisher.BroadcastJSON(events.ComicStatus{
			Type:        events.TypeComicStatus,
			ComicID:     comic.ID,
			Series:      comic.Series,
			IssueNumber: comic.IssueNumber,
			Status:      string(comic.Status),
			At:          time.Now().UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": comic.Status})
}

func (h *Handler) uploadForm(c *gin.Context) {
	h.html(c, http.StatusOK, "upload.html", pageData{Title: "Upload"})
}

func (h *Handler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(fh.Filename, `\`, "/")))
	if !strings.EqualFold(filepath.Ext(name), ".csv") || name == ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv files are accepted"})
		return
	}

	dst, err := h.saveUpload(fh, name)
	if err != nil {
		h.logger.Error("save upload", slog.String("name", name), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	defer func() {
		if err := os.Remove(dst); err != nil {
			h.logger.Warn("remove upload", slog.String("path", dst), slog.Any("error", err))
		}
	}()

	if err := h.Import(c.Request.Context(), dst); err != nil {
		h.logger.Error("import upload", slog.String("path", dst), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed: " + err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// saveUpload copies the upload to a file of its own under UploadDir, so two
// uploads with the same name never share a path.
func (h *Handler) saveUpload(fh *multipart.FileHeader, name string) (string, error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.UploadDir, "*-"+strings.ReplaceAll(name, "*", "_"))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return dst.Name(), nil
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
