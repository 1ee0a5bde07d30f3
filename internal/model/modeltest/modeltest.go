// Package modeltest serves model descriptors and weight shards over HTTP
// for tests.
package modeltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

type Server struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	gates map[string]chan struct{}
}

func NewServer() *Server {
	s := &Server{
		files: make(map[string][]byte),
		hits:  make(map[string]int),
		gates: make(map[string]chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	data, ok := s.files[r.URL.Path]
	gate := s.gates[r.URL.Path]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

// Put serves data at path, e.g. "/cnn/model.json".
func (s *Server) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path] = data
}

func (s *Server) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, path)
}

// Hold makes requests for path block until release is called. Release is
// safe to call more than once.
func (s *Server) Hold(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Hits returns how many times path was requested.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hits[path]
}

// Shard is one weight file and the float32 tensors packed into it.
type Shard struct {
	Path    string
	Data    []byte
	Weights []map[string]any
}

// AddModel serves a model.json for name with the given topology and a single
// manifest group made of shards, plus the shard files themselves.
func (s *Server) AddModel(name string, topology map[string]any, shards ...Shard) {
	var paths []string
	var weights []map[string]any
	for _, sh := range shards {
		paths = append(paths, sh.Path)
		weights = append(weights, sh.Weights...)
		s.Put("/"+name+"/"+sh.Path, sh.Data)
	}

	desc := map[string]any{
		"format":        "layers-model",
		"modelTopology": topology,
		"weightsManifest": []map[string]any{
			{"paths": paths, "weights": weights},
		},
	}
	data, err := json.Marshal(desc)
	if err != nil {
		panic(err)
	}
	s.Put("/"+name+"/model.json", data)
}

// LegacyTopology is a Keras 3 style Sequential topology whose InputLayer only
// carries batch_shape.
func LegacyTopology(batchShape ...any) map[string]any {
	return map[string]any{
		"model_config": map[string]any{
			"class_name": "Sequential",
			"config": map[string]any{
				"name": "sequential",
				"layers": []any{
					map[string]any{
						"class_name": "InputLayer",
						"config": map[string]any{
							"name":        "input_layer",
							"batch_shape": batchShape,
						},
					},
				},
			},
		},
	}
}
