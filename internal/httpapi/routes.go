// Package httpapi exposes the chat entry point over HTTP together with
// health, readiness and metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-chat/internal/chat"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/nlp"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

// ChatHandler answers one chat message.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) chat.Result
}

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

type chatRequest struct {
	SessionID string      `json:"sessionId" validate:"max=128"`
	UserID    string      `json:"userId" validate:"max=128"`
	Message   string      `json:"message" validate:"required,max=1000"`
	NLP       *nlp.Result `json:"nlp,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type API struct {
	chat   ChatHandler
	checks map[string]Checker
	logger logger.Logger
}

func NewAPI(handler ChatHandler, checks map[string]Checker, log logger.Logger) *API {
	return &API{
		chat:   handler,
		checks: checks,
		logger: logger.ForComponent(log, "http-api"),
	}
}

// Router wires every route.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/chat", a.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Message: "invalid JSON body"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Message: validationMessage(err)})
		return
	}

	res := a.chat.Handle(r.Context(), chat.Request{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Text:      req.Message,
		NLP:       req.NLP,
	})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(a.checks))
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			a.logger.Warn("readiness check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
			continue
		}
		deps[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":       state,
		"dependencies": deps,
		"time":         time.Now().Format(time.RFC3339),
	})
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()[:1]) + fe.Field()[1:] + " is required"
	case "max":
		return strings.ToLower(fe.Field()[:1]) + fe.Field()[1:] + " is too long"
	default:
		return fe.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
