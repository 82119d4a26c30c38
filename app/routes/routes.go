package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"studentmarket/app/controllers"
	"studentmarket/app/drafts"
	"studentmarket/app/middleware"
	"studentmarket/app/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Deps is everything the router needs.
type Deps struct {
	Listings       *services.ListingService
	Composer       *drafts.Composer
	Metrics        *middleware.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(deps Deps) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()

	// Apply global middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
		router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}

	// mux skips router middleware for these, so they carry their own.
	fallback := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		if deps.Metrics != nil {
			handler = deps.Metrics.UnmatchedMiddleware(handler)
		}
		return middleware.Logger(logger)(handler)
	}
	notFoundHandler := fallback(notFound)
	methodNotAllowedHandler := fallback(methodNotAllowed)

	router.NotFoundHandler = notFoundHandler
	router.MethodNotAllowedHandler = methodNotAllowedHandler

	listingController := controllers.NewListingController(deps.Listings, logger)
	draftController := controllers.NewDraftController(deps.Composer, deps.MaxUploadBytes, logger)

	// API routes with JSON content type. Every API route lives on this one
	// subrouter so a path match with the wrong method is answered with 405.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.ContentTypeJSON)
	api.NotFoundHandler = notFoundHandler
	api.MethodNotAllowedHandler = methodNotAllowedHandler

	api.HandleFunc("/listings", listingController.Index).Methods("GET")
	api.HandleFunc("/listings", listingController.Create).Methods("POST")
	api.HandleFunc("/listings/{id}", listingController.Show).Methods("GET")
	api.HandleFunc("/listings/{id}", listingController.Delete).Methods("DELETE")
	api.HandleFunc("/listings/{id}/comments", listingController.Comment).Methods("POST")

	api.HandleFunc("/stats", listingController.Stats).Methods("GET")

	api.HandleFunc("/drafts", draftController.Open).Methods("POST")
	api.HandleFunc("/drafts/{id}", draftController.Dismiss).Methods("DELETE")
	api.HandleFunc("/drafts/{id}/images", draftController.Images).Methods("GET")
	api.HandleFunc("/drafts/{id}/images", draftController.Upload).Methods("POST")
	api.HandleFunc("/drafts/{id}/publish", draftController.Publish).Methods("POST")

	return router
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}
	http.NotFound(w, r)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
