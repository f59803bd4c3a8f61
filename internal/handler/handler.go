package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"image"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	rockclassifier "github.com/menta2k/rock-classifier"
	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/internal/metrics"
	"github.com/menta2k/rock-classifier/internal/utils"
	"github.com/menta2k/rock-classifier/pkg/preview"
	"github.com/menta2k/rock-classifier/pkg/report"
	"github.com/menta2k/rock-classifier/pkg/types"
)

// multipart framing on top of the file itself
const formOverhead = 1 << 20

type Handler struct {
	classifier *rockclassifier.RockClassifier
	preview    *preview.Renderer
	cfg        *config.Config
	log        *zap.Logger
}

func NewHandler(classifier *rockclassifier.RockClassifier, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		preview:    preview.New(),
		cfg:        cfg,
		log:        log,
	}
}

// rejection is an upload refused before decoding.
type rejection struct {
	status  int
	message string
}

// outcome is everything one classification action produced.
type outcome struct {
	filename string
	size     int64
	preview  string
	result   *types.ClassificationResult
	rejected *rejection
	err      error
}

// page is the view model of index.html.
type page struct {
	Title      string
	Accept     string
	MaxSize    string
	Backend    string
	Model      string
	Filename   string
	FileSize   string
	Preview    template.URL
	Result     template.HTML
	Disclaimer template.HTML
	Duration   string
	Notice     *report.Notice
}

func (h *Handler) GetUI(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.newPage())
}

// ClassifyForm handles the upload form and renders the result page.
func (h *Handler) ClassifyForm(c *gin.Context) {
	out := h.process(c)
	p := h.newPage()
	p.Filename = out.filename
	if out.size > 0 {
		p.FileSize = utils.FormatFileSize(out.size)
	}
	// data: URIs are dropped by html/template unless marked safe
	p.Preview = template.URL(out.preview)

	switch {
	case out.rejected != nil:
		p.Notice = &report.Notice{Message: out.rejected.message}
		c.HTML(out.rejected.status, "index.html", p)
	case out.err != nil:
		n := report.Describe(out.err, h.classifier.Backend().Name())
		p.Notice = &n
		c.HTML(statusFor(out.err), "index.html", p)
	default:
		p.Result = report.Markdown(out.result.Text)
		p.Disclaimer = report.Markdown(report.Disclaimer)
		p.Duration = out.result.Duration.Round(time.Millisecond).String()
		c.HTML(http.StatusOK, "index.html", p)
	}
}

// ClassifyAPI is the JSON flavor of ClassifyForm.
func (h *Handler) ClassifyAPI(c *gin.Context) {
	out := h.process(c)

	if out.rejected != nil {
		c.JSON(out.rejected.status, gin.H{"error": out.rejected.message, "kind": "UploadError"})
		return
	}

	if out.err != nil {
		n := report.Describe(out.err, h.classifier.Backend().Name())
		resp := gin.H{"error": n.Message, "kind": n.Kind}
		if e, ok := types.AsError(out.err); ok && e.StatusCode != 0 {
			resp["status_code"] = e.StatusCode
		}
		if n.Body != "" {
			resp["body"] = n.Body
		}
		c.JSON(statusFor(out.err), resp)
		return
	}

	resp := gin.H{
		"text":        out.result.Text,
		"backend":     out.result.Backend,
		"model":       out.result.Model,
		"duration_ms": out.result.Duration.Milliseconds(),
	}
	if fields, err := report.ParseFields(out.result.Text); err == nil {
		resp["fields"] = fields
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"backend": h.classifier.Backend().Name(),
		"model":   h.classifier.Backend().Model(),
		"version": rockclassifier.GetVersion(),
	})
}

// process runs one user action: upload checks, decode, preview, encode, classify.
// Each failed stage ends the action; nothing after it runs.
func (h *Handler) process(c *gin.Context) *outcome {
	log := h.requestLog(c)
	out := &outcome{}

	file, rej := h.readUpload(c)
	if rej != nil {
		log.Warn("Upload rejected", zap.Int("status", rej.status), zap.String("reason", rej.message))
		out.rejected = rej
		return out
	}
	out.filename = utils.SanitizeFilename(file.Filename)
	out.size = file.Size
	metrics.UploadBytes.Observe(float64(file.Size))

	img, err := h.decode(file)
	if err != nil {
		h.fail(log, out, err)
		return out
	}

	if out.preview, err = h.preview.Render(img); err != nil {
		log.Warn("Preview failed", zap.Error(err))
	}

	imgB64, err := h.classifier.Encode(img)
	if err != nil {
		h.fail(log, out, err)
		return out
	}

	backend := h.classifier.Backend().Name()
	start := time.Now()
	// a client disconnect does not abort the backend call; the backend timeout still applies
	result, err := h.classifier.Classify(context.WithoutCancel(c.Request.Context()), imgB64)
	metrics.ClassificationDurationSeconds.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		h.fail(log, out, err)
		return out
	}

	metrics.ClassificationsTotal.WithLabelValues(backend, metrics.ResultLabel("")).Inc()
	log.Info("Classification completed",
		zap.String("file", out.filename),
		zap.Int64("size", out.size),
		zap.Duration("duration", result.Duration))
	out.result = result
	return out
}

func (h *Handler) readUpload(c *gin.Context) (*multipart.FileHeader, *rejection) {
	limit := h.cfg.App.MaxUploadSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, h.tooLarge()
		}
		return nil, &rejection{status: http.StatusBadRequest, message: "이미지 파일을 선택해 주세요."}
	}

	if file.Size > limit {
		return nil, h.tooLarge()
	}

	if !utils.IsAllowedImageFile(file.Filename, h.cfg.App.AllowedFormats) {
		formats := strings.ToUpper(strings.Join(h.cfg.App.AllowedFormats, ", "))
		return nil, &rejection{
			status:  http.StatusBadRequest,
			message: fmt.Sprintf("지원하지 않는 파일 형식입니다. %s 파일만 업로드할 수 있습니다.", formats),
		}
	}

	return file, nil
}

func (h *Handler) tooLarge() *rejection {
	return &rejection{
		status:  http.StatusRequestEntityTooLarge,
		message: fmt.Sprintf("파일이 너무 큽니다. 최대 %s까지 업로드할 수 있습니다.", utils.FormatFileSize(h.cfg.App.MaxUploadSize)),
	}
}

func (h *Handler) decode(file *multipart.FileHeader) (image.Image, error) {
	f, err := file.Open()
	if err != nil {
		return nil, types.NewDecodeError("open upload", err)
	}
	defer f.Close()

	return h.classifier.Decode(f)
}

func (h *Handler) fail(log *zap.Logger, out *outcome, err error) {
	kind := types.KindOf(err)
	result := metrics.ResultLabel(string(kind))
	if kind == "" {
		result = metrics.ResultUnknown
	}
	metrics.ClassificationsTotal.WithLabelValues(h.classifier.Backend().Name(), result).Inc()
	log.Error("Classification failed",
		zap.String("file", out.filename),
		zap.String("kind", string(kind)),
		zap.Error(err))
	out.err = err
}

func (h *Handler) newPage() page {
	return page{
		Title:   "⛏️ AI 암석 및 광물 분류기",
		Accept:  accept(h.cfg.App.AllowedFormats),
		MaxSize: utils.FormatFileSize(h.cfg.App.MaxUploadSize),
		Backend: h.classifier.Backend().Name(),
		Model:   h.classifier.Backend().Model(),
	}
}

func (h *Handler) requestLog(c *gin.Context) *zap.Logger {
	if id := c.GetString(RequestIDKey); id != "" {
		return h.log.With(zap.String("request_id", id))
	}
	return h.log
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch types.KindOf(err) {
	case types.DecodeError:
		return http.StatusBadRequest
	case types.EncodingError:
		return http.StatusUnprocessableEntity
	case types.TransportError, types.StructuralError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// accept renders formats for the file input, e.g. ".jpg,.jpeg,.png".
func accept(formats []string) string {
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = "." + f
	}
	return strings.Join(exts, ",")
}
