package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/parsec-labs/sidewatch/app/query/types"
	"github.com/parsec-labs/sidewatch/pkg/utils"
)

type Controller struct {
	App *types.App

	// admin auth; AdminToken is a static API token for automation,
	// AuthUser/AuthHash+JWTSecret back the interactive session flow.
	AdminToken string
	AuthUser   string
	AuthHash   []byte
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	phash, err := utils.HashOrRead(utils.Env("ADMIN_PASS", "admin"))
	if err != nil {
		app.Logger.Fatal("unable to process ADMIN_PASS")
	}

	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", ""),
		AuthUser:   utils.Env("ADMIN_USER", "admin"),
		AuthHash:   phash,
		JWTSecret:  []byte(utils.Env("JWT_SECRET", "dev-insecure-secret")),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/v1/blocks", c.HandleBlocks).Methods(http.MethodGet)
	r.HandleFunc("/v1/blocks/{height}", c.HandleBlockByHeight).Methods(http.MethodGet)
	r.HandleFunc("/v1/validators", c.HandleValidators).Methods(http.MethodGet)
	r.HandleFunc("/v1/committees/{epoch}", c.HandleCommittee).Methods(http.MethodGet)
	r.HandleFunc("/v1/progress", c.HandleProgress).Methods(http.MethodGet)
	r.HandleFunc("/v1/progress/ws", c.HandleProgressWS).Methods(http.MethodGet)
	r.HandleFunc("/v1/status", c.HandleStatus).Methods(http.MethodGet)

	r.HandleFunc("/v1/admin/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/admin/logout", c.HandleAdminLogout).Methods(http.MethodPost)
	r.Handle("/v1/admin/resync", c.RequireAdmin(http.HandlerFunc(c.HandleResync))).Methods(http.MethodPost)

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
