package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kwv/handeye/handeye"
)

// maxJobBytes caps the size of a POST /calibrate body.
const maxJobBytes = 16 << 20

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(runner *handeye.Runner) http.Handler {
	mux := http.NewServeMux()
	store := runner.Store()
	cfg := runner.Config()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			handeye.StoreStatus
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			StoreStatus: store.Status(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("/methods", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, handeye.MethodNames())
	})

	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		res := store.Batch()
		if res == nil {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, resultsPayload(res))
	})

	mux.HandleFunc("/report.txt", func(w http.ResponseWriter, r *http.Request) {
		res := store.Batch()
		if res == nil {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := handeye.WriteBatchReport(w, res, cfg.TranslationUnit()); err != nil {
			log.Printf("[HTTP] Error writing report: %v", err)
		}
	})

	mux.HandleFunc("/calibrate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "POST a calibration job", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxJobBytes))
		if err != nil {
			http.Error(w, "Error reading request body", http.StatusBadRequest)
			return
		}
		job, err := handeye.DecodeJob(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("[HTTP] /calibrate: %d poses, methods=%v", len(job.A), job.Methods)
		res, err := runner.Run(r.Context(), job.A, job.B, job.Methods)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, resultsPayload(res))
	})

	mux.HandleFunc("/trajectory.svg", imageHandler(store, "image/svg+xml", func(w io.Writer, a, b handeye.PoseSequence, res *handeye.BatchResult) error {
		return renderFormat(w, "svg", a, b, res, cfg)
	}))

	mux.HandleFunc("/errors.png", imageHandler(store, "image/png", func(w io.Writer, a, b handeye.PoseSequence, res *handeye.BatchResult) error {
		return renderFormat(w, "chart", a, b, res, cfg)
	}))

	mux.HandleFunc("/residuals.png", imageHandler(store, "image/png", func(w io.Writer, a, b handeye.PoseSequence, res *handeye.BatchResult) error {
		return renderFormat(w, "residuals", a, b, res, cfg)
	}))

	return mux
}

type renderFunc func(w io.Writer, a, b handeye.PoseSequence, res *handeye.BatchResult) error

// imageHandler renders the latest batch into a buffer so that a render error
// can still be reported with a proper status code.
func imageHandler(store *handeye.ResultStore, contentType string, render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := store.Batch()
		a, b := store.Poses()
		if res == nil || len(a) == 0 {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		var buf bytes.Buffer
		if err := render(&buf, a, b, res); err != nil {
			log.Printf("[HTTP] Error rendering %s: %v", r.URL.Path, err)
			http.Error(w, "Render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.Printf("[HTTP] Error writing %s: %v", r.URL.Path, err)
		}
	}
}

type resultsResponse struct {
	PoseCount int                     `json:"poseCount"`
	Started   time.Time               `json:"started"`
	Duration  string                  `json:"duration"`
	Results   []handeye.ResultMessage `json:"results"`
}

func resultsPayload(res *handeye.BatchResult) resultsResponse {
	out := resultsResponse{
		PoseCount: res.PoseCount,
		Started:   res.Started,
		Duration:  res.Duration.String(),
		Results:   make([]handeye.ResultMessage, 0, len(res.Outcomes)),
	}
	now := time.Now()
	for _, o := range res.Outcomes {
		out.Results = append(out.Results, handeye.NewResultMessage(o, now))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
