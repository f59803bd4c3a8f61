package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	rockclassifier "github.com/menta2k/rock-classifier"
	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/internal/metrics"
	"github.com/menta2k/rock-classifier/pkg/client"
	"github.com/menta2k/rock-classifier/pkg/types"
)

const answer = `**암석 이름:** 화강암
**암석 유형:** 화성암
**설명:** 석영, 장석, 운모로 이루어진 조립질 암석입니다.
**정확도 추정:** 90%`

type fakeClassifier struct {
	text  string
	err   error
	calls int
	ctx   context.Context
}

func (f *fakeClassifier) Classify(ctx context.Context, imgB64 string) (string, error) {
	f.calls++
	f.ctx = ctx
	return f.text, f.err
}

func (f *fakeClassifier) Name() string  { return "Fake" }
func (f *fakeClassifier) Model() string { return "fake-1" }

func newRouter(t *testing.T, fake *fakeClassifier, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := Templates()
	require.NoError(t, err)

	cfg := &config.Config{App: config.AppConfig{
		MaxUploadSize:  maxUpload,
		AllowedFormats: []string{"jpg", "jpeg", "png"},
	}}
	h := NewHandler(rockclassifier.New(fake), cfg, zap.NewNop())

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(RequestID())
	r.GET("/", h.GetUI)
	r.GET("/health", h.HealthCheck)
	r.POST("/classify", h.ClassifyForm)
	r.POST("/api/v1/classify", h.ClassifyAPI)
	return r
}

func grayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetUI(t *testing.T) {
	r := newRouter(t, &fakeClassifier{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "⛏️ AI 암석 및 광물 분류기")
	assert.Contains(t, body, `accept=".jpg,.jpeg,.png"`)
	assert.Contains(t, body, "✨ 암석 식별 시작")
	assert.NotContains(t, body, "분석 완료")
}

func TestClassifyForm_Success(t *testing.T) {
	fake := &fakeClassifier{text: answer}
	r := newRouter(t, fake, 1<<20)

	rec := serve(r, upload(t, "/classify", "rock.png", grayPNG(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.calls)

	body := rec.Body.String()
	assert.Contains(t, body, "✅ 분석 완료!")
	assert.Contains(t, body, "🔬 분석 결과")
	for _, label := range client.FieldLabels {
		assert.Contains(t, body, label)
	}
	assert.Contains(t, body, "실제 지질학적 분석을 대체할 수 없습니다")
	assert.Contains(t, body, "data:image/webp;base64,")
	assert.Contains(t, body, "rock.png")
}

func TestClassifyForm_DecodeErrorSkipsBackend(t *testing.T) {
	fake := &fakeClassifier{text: answer}
	r := newRouter(t, fake, 1<<20)

	rec := serve(r, upload(t, "/classify", "notes.png", []byte("just some notes, not pixels")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "이미지 파일을 처리하는 중 오류가 발생했습니다")
	assert.NotContains(t, rec.Body.String(), "분석 완료")
	assert.Equal(t, 0, fake.calls)
}

func TestClassifyForm_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		limit    int64
		status   int
		contains string
	}{
		{"missing file", "", nil, 1 << 20, http.StatusBadRequest, "이미지 파일을 선택해 주세요"},
		{"gif extension", "rock.gif", []byte("GIF89a"), 1 << 20, http.StatusBadRequest, "지원하지 않는 파일 형식입니다"},
		{"too large", "rock.png", bytes.Repeat([]byte{0}, 64), 16, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeClassifier{text: answer}
			r := newRouter(t, fake, tc.limit)

			rec := serve(r, upload(t, "/classify", tc.filename, tc.data))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
			assert.Equal(t, 0, fake.calls)
		})
	}
}

func TestClassifyForm_TransportErrorShowsBody(t *testing.T) {
	fake := &fakeClassifier{err: types.NewTransportError("generateContent", 403, "quota exceeded", errors.New("unexpected status 403 Forbidden"))}
	r := newRouter(t, fake, 1<<20)

	rec := serve(r, upload(t, "/classify", "rock.jpg", grayPNG(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Fake API 요청 오류 발생")
	assert.Contains(t, body, "서버 응답 본문: quota exceeded")
}

func TestClassifyAPI_Success(t *testing.T) {
	r := newRouter(t, &fakeClassifier{text: answer}, 1<<20)

	rec := serve(r, upload(t, "/api/v1/classify", "rock.png", grayPNG(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Text     string `json:"text"`
		Backend  string `json:"backend"`
		Model    string `json:"model"`
		Duration *int64 `json:"duration_ms"`
		Fields   *struct {
			Name       string `json:"name"`
			Type       string `json:"type"`
			Confidence string `json:"confidence"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, answer, resp.Text)
	assert.Equal(t, "Fake", resp.Backend)
	assert.Equal(t, "fake-1", resp.Model)
	assert.NotNil(t, resp.Duration)
	require.NotNil(t, resp.Fields)
	assert.Equal(t, "화강암", resp.Fields.Name)
	assert.Equal(t, "화성암", resp.Fields.Type)
	assert.Equal(t, "90%", resp.Fields.Confidence)
}

func TestClassifyAPI_FreeTextHasNoFields(t *testing.T) {
	r := newRouter(t, &fakeClassifier{text: "이 사진은 화강암으로 보입니다."}, 1<<20)

	rec := serve(r, upload(t, "/api/v1/classify", "rock.png", grayPNG(t)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "이 사진은 화강암으로 보입니다.", resp["text"])
	assert.NotContains(t, resp, "fields")
}

func TestClassifyAPI_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		data       []byte
		status     int
		kind       string
		statusCode float64
		body       string
	}{
		{"transport", types.NewTransportError("generateContent", 403, "API_KEY_INVALID detail", nil), nil, http.StatusBadGateway, "TransportError", 403, "API_KEY_INVALID detail"},
		{"structural", types.NewStructuralError("decode response", errors.New("no candidates")), nil, http.StatusBadGateway, "StructuralError", 0, ""},
		{"encoding", types.NewEncodingError("jpeg", errors.New("boom")), nil, http.StatusUnprocessableEntity, "EncodingError", 0, ""},
		{"decode", nil, []byte("not an image"), http.StatusBadRequest, "DecodeError", 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(t, &fakeClassifier{err: tc.err}, 1<<20)
			data := tc.data
			if data == nil {
				data = grayPNG(t)
			}

			rec := serve(r, upload(t, "/api/v1/classify", "rock.png", data))
			assert.Equal(t, tc.status, rec.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.kind, resp["kind"])
			assert.NotEmpty(t, resp["error"])
			if tc.statusCode != 0 {
				assert.Equal(t, tc.statusCode, resp["status_code"])
			} else {
				assert.NotContains(t, resp, "status_code")
			}
			if tc.body != "" {
				assert.Equal(t, tc.body, resp["body"])
			} else {
				assert.NotContains(t, resp, "body")
			}
		})
	}
}

func TestClassifyForm_ClientDisconnectDoesNotCancelBackend(t *testing.T) {
	fake := &fakeClassifier{text: answer}
	r := newRouter(t, fake, 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := upload(t, "/classify", "rock.png", grayPNG(t)).WithContext(ctx)

	rec := serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, fake.calls)
	require.NotNil(t, fake.ctx)
	assert.NoError(t, fake.ctx.Err())
	_, hasDeadline := fake.ctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestClassifyAPI_UnkindedErrorIsUnknown(t *testing.T) {
	r := newRouter(t, &fakeClassifier{err: errors.New("boom")}, 1<<20)
	counter := metrics.ClassificationsTotal.WithLabelValues("Fake", metrics.ResultUnknown)
	before := testutil.ToFloat64(counter)
	success := testutil.ToFloat64(metrics.ClassificationsTotal.WithLabelValues("Fake", "success"))

	rec := serve(r, upload(t, "/api/v1/classify", "rock.png", grayPNG(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, success, testutil.ToFloat64(metrics.ClassificationsTotal.WithLabelValues("Fake", "success")))
}

func TestClassifyAPI_UploadRejected(t *testing.T) {
	r := newRouter(t, &fakeClassifier{text: answer}, 1<<20)

	rec := serve(r, upload(t, "/api/v1/classify", "rock.bmp", []byte("BM")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UploadError", resp["kind"])
}

func TestRequestID(t *testing.T) {
	r := newRouter(t, &fakeClassifier{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec = serve(r, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = serve(r, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestHealthCheck(t *testing.T) {
	r := newRouter(t, &fakeClassifier{}, 1<<20)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp["status"])
	assert.Equal(t, "Fake", resp["backend"])
	assert.Equal(t, rockclassifier.Version, resp["version"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(types.NewDecodeError("x", nil)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(types.NewEncodingError("x", nil)))
	assert.Equal(t, http.StatusBadGateway, statusFor(types.NewTransportError("x", 500, "", nil)))
	assert.Equal(t, http.StatusBadGateway, statusFor(types.NewStructuralError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(types.NewConfigError("x", nil)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
