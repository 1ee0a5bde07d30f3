package handlers_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
	"github.com/Brownie44l1/sketch-classifier/internal/engine"
	"github.com/Brownie44l1/sketch-classifier/internal/engine/enginetest"
	"github.com/Brownie44l1/sketch-classifier/internal/handlers"
	"github.com/Brownie44l1/sketch-classifier/internal/inference"
	"github.com/Brownie44l1/sketch-classifier/internal/model"
	"github.com/Brownie44l1/sketch-classifier/internal/model/modeltest"
	"github.com/Brownie44l1/sketch-classifier/internal/session"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()

	models := modeltest.NewServer()
	t.Cleanup(models.Close)
	models.AddModel("cnn", modeltest.LegacyTopology(nil, 28, 28, 1),
		modeltest.Shard{Path: "shard1.bin", Data: []byte{1}})

	eng := &enginetest.Engine{
		Build: func(*engine.Artifacts) (engine.Model, error) {
			return &enginetest.Model{
				Shape:  []int{-1, 784},
				Output: []float32{0.05, 0.85, 0.02, 0.01, 0.01, 0.01, 0.01, 0.01, 0.02, 0.01},
			}, nil
		},
	}
	loader := model.NewLoader(model.NewFetcher(models.URL, models.Client()), eng)
	sess := session.New(loader, canvas.New(100), "cnn")

	mux := http.NewServeMux()
	handlers.NewHandler(sess).Register(mux)
	api := httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func post(t *testing.T, api *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(api.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type prediction struct {
	Result  inference.Result  `json:"result"`
	Display inference.Display `json:"display"`
}

func TestHealth(t *testing.T) {
	api := newAPI(t)
	resp, err := http.Get(api.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPredictWithoutModel(t *testing.T) {
	api := newAPI(t)
	resp := post(t, api, "/predict", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSelectThenPredict(t *testing.T) {
	api := newAPI(t)

	resp := post(t, api, "/model", `{"name":"cnn"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[model.Status](t, resp)
	assert.Equal(t, "CNN Ready", status.Text)

	resp = post(t, api, "/canvas/gesture", `{"type":"mousedown","clientX":20,"clientY":20}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = post(t, api, "/canvas/gesture", `{"type":"mousemove","clientX":80,"clientY":80}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = post(t, api, "/predict", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[prediction](t, resp)
	assert.Equal(t, 1, p.Result.Index)
	assert.Equal(t, "85.0%", p.Display.Confidence)

	resp = post(t, api, "/canvas/clear", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, inference.BlankDisplay(), decode[inference.Display](t, resp))
}

func TestSelectErrors(t *testing.T) {
	api := newAPI(t)

	resp := post(t, api, "/model", `{"name":"rnn"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// fnn is not served by the model server.
	resp = post(t, api, "/model", `{"name":"fnn"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = post(t, api, "/model", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBadGesture(t *testing.T) {
	api := newAPI(t)
	resp := post(t, api, "/canvas/gesture", `{"type":"pinch"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// syncBuffer collects log output written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()
	var buf syncBuffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestRejectedRequestsAreLogged(t *testing.T) {
	api := newAPI(t)
	logs := captureLog(t)

	assert.Equal(t, http.StatusBadRequest, post(t, api, "/model", `{`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, api, "/model", `{"name":"rnn"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, api, "/canvas/gesture", `[`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, api, "/canvas/gesture", `{"type":"pinch"}`).StatusCode)

	out := logs.String()
	assert.Contains(t, out, "Invalid model request")
	assert.Contains(t, out, `Unknown model requested: "rnn"`)
	assert.Contains(t, out, "Invalid gesture request")
	assert.Contains(t, out, "Gesture error")
	assert.Contains(t, out, "pinch")
}

func TestCanvasImage(t *testing.T) {
	api := newAPI(t)
	resp, err := http.Get(api.URL + "/canvas.png")
	require.NoError(t, err)
	defer resp.Body.Close()

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestPredictFromImage(t *testing.T) {
	api := newAPI(t)
	require.Equal(t, http.StatusOK, post(t, api, "/model", `{"name":"cnn"}`).StatusCode)

	img := image.NewRGBA(image.Rect(0, 0, 56, 56))
	img.Set(28, 28, color.White)
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "sketch.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(api.URL+"/predict/image", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[prediction](t, resp)
	assert.Equal(t, "Trouser 👖", p.Display.Label)
}

func TestPredictFromImageWithoutFile(t *testing.T) {
	api := newAPI(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(api.URL+"/predict/image", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
