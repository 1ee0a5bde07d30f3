package handlers

import (
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"
	"net/http"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
	"github.com/Brownie44l1/sketch-classifier/internal/inference"
	"github.com/Brownie44l1/sketch-classifier/internal/model"
	"github.com/Brownie44l1/sketch-classifier/internal/session"
)

type Handler struct {
	session *session.Session
}

func NewHandler(s *session.Session) *Handler {
	return &Handler{session: s}
}

// Register mounts all endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("POST /model", h.SelectModel)
	mux.HandleFunc("POST /canvas/gesture", h.Gesture)
	mux.HandleFunc("POST /canvas/clear", h.Clear)
	mux.HandleFunc("GET /canvas.png", h.CanvasImage)
	mux.HandleFunc("POST /predict", h.Predict)
	mux.HandleFunc("POST /predict/image", h.PredictFromImage)
}

type selectRequest struct {
	Name string `json:"name"`
}

type predictResponse struct {
	Result  inference.Result  `json:"result"`
	Display inference.Display `json:"display"`
}

type errorResponse struct {
	Error  string        `json:"error"`
	Status *model.Status `json:"status,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current": h.session.Current(),
		"status":  h.session.Status(),
		"display": h.session.Display(),
	})
}

func (h *Handler) SelectModel(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Invalid model request: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}
	if !model.IsKnown(req.Name) {
		log.Printf("Unknown model requested: %q", req.Name)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Unknown model " + req.Name})
		return
	}

	status, err := h.session.Select(r.Context(), req.Name)
	if err != nil {
		var loadErr *model.LoadError
		if errors.As(err, &loadErr) {
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: loadErr.Error(), Status: &status})
			return
		}
		log.Printf("Select error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Model selection failed", Status: &status})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) Gesture(w http.ResponseWriter, r *http.Request) {
	var g canvas.Gesture
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		log.Printf("Invalid gesture request: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}
	if err := h.session.Gesture(g); err != nil {
		log.Printf("Gesture error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Clear())
}

func (h *Handler) CanvasImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, h.session.Canvas().Image()); err != nil {
		log.Printf("Failed to encode canvas: %v", err)
	}
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Predict()
	h.writePrediction(w, res, err)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (10MB max)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to parse form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No image file provided. Use 'image' as the form field name"})
		return
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := image.Decode(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid image format. Supported: JPEG, PNG"})
		return
	}

	log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	// Uploads are brought to canvas scale so they see the same sampling as drawings.
	size := uint(h.session.Canvas().Size())
	if b := img.Bounds(); b.Dx() != int(size) || b.Dy() != int(size) {
		img = resize.Resize(size, size, img, resize.Lanczos3)
	}

	res, err := h.session.PredictImage(img)
	h.writePrediction(w, res, err)
}

func (h *Handler) writePrediction(w http.ResponseWriter, res inference.Result, err error) {
	switch {
	case errors.Is(err, inference.ErrNoModel):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Model not loaded yet."})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Prediction failed"})
	default:
		writeJSON(w, http.StatusOK, predictResponse{Result: res, Display: res.Display()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
