package handlers

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/auth"
	"github.com/meeyouu/skiniveAPI/internal/imageprocessor"
	"github.com/meeyouu/skiniveAPI/internal/relay"
	"github.com/meeyouu/skiniveAPI/internal/render"
	"github.com/meeyouu/skiniveAPI/internal/repository"
	"github.com/meeyouu/skiniveAPI/internal/usecase"
)

// MaxUploadSize caps the accepted image size.
const MaxUploadSize = 10 << 20

// multipart framing and the sidebar fields on top of the image itself
const formOverhead = 1 << 20

//go:embed templates/*.html
var templateFS embed.FS

// Options tune the HTTP surface.
type Options struct {
	PreviewMaxWidth uint
	Logger          *zap.Logger
}

type sidebarForm struct {
	Sidebar     bool   `form:"sidebar"`
	AuthToken   string `form:"auth_token"`
	ValidateURL string `form:"validate_url"`
	PredictURL  string `form:"predict_url"`
	ClassesURL  string `form:"classes_url"`
	Locale      string `form:"locale" binding:"omitempty,oneof=en ru"`
	Lang        string `form:"lang"`
}

type page struct {
	Config   relay.Config
	Locales  []string
	HasImage bool
	Image    string
	Warning  string
	Failure  string
	View     *render.View
}

type handler struct {
	dashboard *usecase.Dashboard
	opts      Options
	logger    *zap.Logger
}

// RegisterRoutes wires the dashboard pages and the JSON endpoints to the Gin router.
func RegisterRoutes(router *gin.Engine, dashboard *usecase.Dashboard, sessionMiddleware gin.HandlerFunc, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &handler{dashboard: dashboard, opts: opts, logger: opts.Logger.Named("handlers")}

	router.SetHTMLTemplate(template.Must(template.New("").ParseFS(templateFS, "templates/*.html")))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, dashboard.GetMetricsSummary())
	})

	ui := router.Group("/", sessionMiddleware)
	ui.GET("/", h.index)
	ui.POST("/config", h.action(nil))
	ui.POST("/upload", h.action(nil))
	ui.POST("/validate", h.action(func(c *gin.Context, sessionID string, form sidebarForm) (*render.View, error) {
		return dashboard.Validate(c.Request.Context(), sessionID)
	}))
	ui.POST("/predict", h.action(func(c *gin.Context, sessionID string, form sidebarForm) (*render.View, error) {
		return dashboard.Predict(c.Request.Context(), sessionID, form.Lang)
	}))
	ui.POST("/classes", h.action(func(c *gin.Context, sessionID string, form sidebarForm) (*render.View, error) {
		return dashboard.GetDiseaseClasses(c.Request.Context(), sessionID)
	}))
	ui.GET("/image", h.preview)
}

func (h *handler) index(c *gin.Context) {
	sessionID, _ := auth.GetSessionID(c.Request.Context())
	state, err := h.dashboard.State(c.Request.Context(), sessionID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	h.render(c, http.StatusOK, newPage(state))
}

type actionFunc func(c *gin.Context, sessionID string, form sidebarForm) (*render.View, error)

// action applies the posted sidebar and file, then runs fn (if any) and
// renders the page.
func (h *handler) action(fn actionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sessionID, _ := auth.GetSessionID(ctx)

		state, err := h.dashboard.State(ctx, sessionID)
		if err != nil {
			h.internalError(c, err)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+formOverhead)
		if err := parseForm(c.Request); err != nil {
			if isTooLarge(err) {
				h.reject(c, http.StatusRequestEntityTooLarge, state, "The image exceeds the 10 MB upload limit.")
				return
			}
			h.reject(c, http.StatusBadRequest, state, "Unable to read the submitted form.")
			return
		}

		var form sidebarForm
		if err := c.ShouldBind(&form); err != nil {
			h.reject(c, http.StatusBadRequest, state, "Locale must be one of: en, ru.")
			return
		}

		if form.Sidebar {
			if state, err = h.dashboard.UpdateConfig(ctx, sessionID, form.config()); err != nil {
				h.internalError(c, err)
				return
			}
		}

		if header, err := c.FormFile("file"); err == nil {
			img, status, message := readUpload(header)
			if img == nil {
				h.reject(c, status, state, message)
				return
			}
			if state, err = h.dashboard.Upload(ctx, sessionID, img); err != nil {
				h.internalError(c, err)
				return
			}
		}

		p := newPage(state)
		if fn == nil {
			h.render(c, http.StatusOK, p)
			return
		}

		view, err := fn(c, sessionID, form)
		var warning *usecase.Warning
		switch {
		case errors.As(err, &warning):
			p.Warning = warning.Message
		case err != nil:
			h.internalError(c, err)
			return
		default:
			p.View = view
		}
		h.render(c, http.StatusOK, p)
	}
}

func (h *handler) preview(c *gin.Context) {
	sessionID, _ := auth.GetSessionID(c.Request.Context())
	data, mediaType, err := h.dashboard.Preview(c.Request.Context(), sessionID, h.opts.PreviewMaxWidth)
	switch {
	case errors.Is(err, usecase.ErrNoImage):
		c.JSON(http.StatusNotFound, gin.H{"error": "no image uploaded"})
	case err != nil:
		h.logger.Warn("preview failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unable to preview image"})
	default:
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, mediaType, data)
	}
}

func (h *handler) render(c *gin.Context, status int, p page) {
	c.HTML(status, "index.html", p)
}

func (h *handler) reject(c *gin.Context, status int, state *repository.SessionState, message string) {
	p := newPage(state)
	p.Failure = message
	h.render(c, status, p)
}

func (h *handler) internalError(c *gin.Context, err error) {
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.HTML(http.StatusInternalServerError, "index.html", page{
		Config:  relay.DefaultConfig(),
		Locales: relay.Locales(),
		Failure: "Internal error, please retry.",
	})
}

func newPage(state *repository.SessionState) page {
	p := page{Config: state.Config, Locales: relay.Locales(), HasImage: state.HasImage()}
	if p.HasImage {
		p.Image = state.Image.Name
	}
	return p
}

func (f sidebarForm) config() relay.Config {
	locale := f.Locale
	if locale == "" {
		locale = relay.LocaleEN
	}
	return relay.Config{
		AuthToken:   f.AuthToken,
		ValidateURL: f.ValidateURL,
		PredictURL:  f.PredictURL,
		ClassesURL:  f.ClassesURL,
		Locale:      locale,
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(MaxUploadSize)
	}
	return r.ParseForm()
}

// readUpload returns the image, or a status and message explaining why the
// upload was refused.
func readUpload(header *multipart.FileHeader) (*imageprocessor.Image, int, string) {
	if header.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, "The image exceeds the 10 MB upload limit."
	}
	if _, err := imageprocessor.MediaTypeFor(header.Filename); err != nil {
		return nil, http.StatusUnsupportedMediaType, "Upload an image in JPG, JPEG or PNG format."
	}

	src, err := header.Open()
	if err != nil {
		return nil, http.StatusBadRequest, "Unable to open the uploaded image."
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusBadRequest, "Unable to read the uploaded image."
	}

	img, err := imageprocessor.NewImage(header.Filename, data)
	if err != nil {
		return nil, http.StatusUnsupportedMediaType, "Upload an image in JPG, JPEG or PNG format."
	}
	return img, 0, ""
}
