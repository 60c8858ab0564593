package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRouter(app *App, hub *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", handleStatus(app)).Methods("GET")
	r.HandleFunc("/models", handleModels(app)).Methods("GET")
	r.HandleFunc("/models/select", handleSelectModel(app)).Methods("POST")
	r.HandleFunc("/benchmark", handleStartBenchmark(app)).Methods("POST")
	r.HandleFunc("/benchmark/report", handleReport(app)).Methods("GET")
	r.HandleFunc("/metrics", handleMetrics(app)).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS).Methods("GET")
	return r
}

func handleStatus(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sendJSON(w, app.Live())
	}
}

func handleModels(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sendJSON(w, map[string]interface{}{
			"catalog": app.CatalogNames(),
		})
	}
}

func handleSelectModel(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model == "" {
			sendErrorResponse(w, "invalid_request", "expected {\"model\": \"<name>\"}", http.StatusBadRequest)
			return
		}
		if err := app.SelectModel(req.Model); err != nil {
			sendErrorResponse(w, "unknown_model", err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleStartBenchmark(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		app.StartBenchmark()
		w.WriteHeader(http.StatusAccepted)
	}
}

func handleReport(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := app.Report()
		if report == nil {
			sendErrorResponse(w, "no_report", "no completed benchmark run", http.StatusNotFound)
			return
		}
		sendJSON(w, report)
	}
}

func handleMetrics(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := app.Scheduler().Stats()
		sendJSON(w, map[string]interface{}{
			"frames_delivered": stats.Delivered,
			"frames_decimated": stats.Decimated,
			"frames_dropped":   stats.Dropped,
			"frames_admitted":  stats.Admitted,
			"frames_processed": stats.Processed,
		})
	}
}

func sendJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
