package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

type predictRequest struct {
	Text string `json:"text"`
}

type prediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

var suspiciousWords = []string{"fake", "hoax", "conspiracy", "exposed", "shocking"}

// classify is a crude stand-in for the real model: it leans toward
// misinformation when obvious trigger words appear and stays neutral
// otherwise, so the engine's lexical adjustment drives the verdict.
func classify(text string) prediction {
	lower := strings.ToLower(text)
	for _, word := range suspiciousWords {
		if strings.Contains(lower, word) {
			return prediction{
				Label: "misinformation",
				Probabilities: map[string]float64{
					"misinformation": 0.5,
					"reliable":       0.5,
				},
			}
		}
	}
	return prediction{
		Label: "reliable",
		Probabilities: map[string]float64{
			"reliable":       0.5,
			"misinformation": 0.5,
		},
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/models/text-classifier:predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, classify(req.Text))
	})

	logger := log.New(log.Writer(), "inference-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8501",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8501")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
