package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/Brownie44l1/sketch-classifier/internal/canvas"
	"github.com/Brownie44l1/sketch-classifier/internal/config"
	"github.com/Brownie44l1/sketch-classifier/internal/engine"
	"github.com/Brownie44l1/sketch-classifier/internal/engine/keras"
	"github.com/Brownie44l1/sketch-classifier/internal/engine/onnxrt"
	"github.com/Brownie44l1/sketch-classifier/internal/handlers"
	"github.com/Brownie44l1/sketch-classifier/internal/httpx"
	"github.com/Brownie44l1/sketch-classifier/internal/model"
	"github.com/Brownie44l1/sketch-classifier/internal/session"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ortEngine := onnxrt.New(cfg.ORTLibraryPath)
	defer ortEngine.Close()

	eng, err := engine.Select(cfg.Engines, map[string]engine.Engine{
		"born": keras.New(),
		"onnx": ortEngine,
	})
	if err != nil {
		log.Fatalf("Failed to select engine: %v", err)
	}
	for _, name := range cfg.Engines {
		engine.CPUReport(name)
	}

	fetcher := model.NewFetcher(cfg.ModelBaseURL, &http.Client{Timeout: cfg.FetchTimeout})
	loader := model.NewLoader(fetcher, eng)
	loader.OnStatus = func(s model.Status) {
		log.Printf("Status: %s", s.Text)
	}
	defer loader.Close()

	sess := session.New(loader, canvas.New(cfg.CanvasSize), cfg.DefaultModel)

	mux := http.NewServeMux()
	handlers.NewHandler(sess).Register(mux)
	if cfg.ModelDir != "" {
		mux.Handle("GET /web_model/", http.StripPrefix("/web_model/", http.FileServer(http.Dir(cfg.ModelDir))))
		log.Printf("Serving models from: %s", cfg.ModelDir)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.CORS{AllowOrigin: "*"}.Wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// The default model may be served by this process, so bind first.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	go func() {
		if _, err := sess.Select(context.Background(), cfg.DefaultModel); err != nil {
			log.Printf("Initial model load failed: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Model base URL: %s", cfg.ModelBaseURL)
	log.Printf("Architectures: %v", model.Architectures)
	log.Println("Endpoints:")
	log.Println("  GET  /health         - Health check")
	log.Println("  GET  /status         - Model status and last result")
	log.Println("  POST /model          - Select and load an architecture")
	log.Println("  POST /canvas/gesture - Pointer/touch event")
	log.Println("  POST /canvas/clear   - Clear the canvas")
	log.Println("  GET  /canvas.png     - Current canvas")
	log.Println("  POST /predict        - Predict from the canvas")
	log.Println("  POST /predict/image  - Predict from image upload")

	if err := srv.Serve(ln); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
