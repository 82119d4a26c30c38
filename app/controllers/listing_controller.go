package controllers

import (
	"net/http"

	"studentmarket/app/models"
	"studentmarket/app/query"
	"studentmarket/app/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ListingController handles HTTP requests for listings and their comments
type ListingController struct {
	listings *services.ListingService
	logger   *zap.Logger
}

// NewListingController creates a new ListingController
func NewListingController(listings *services.ListingService, logger *zap.Logger) *ListingController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingController{listings: listings, logger: logger}
}

type listingsResponse struct {
	Listings []*models.Listing `json:"listings"`
	Count    int               `json:"count"`
}

// Index runs the query pipeline with ?q=&category=&sort=
func (lc *ListingController) Index(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	category, err := query.ParseCategory(params.Get("category"))
	if err != nil {
		sendAppError(w, lc.logger, err)
		return
	}
	sortBy, err := query.ParseSort(params.Get("sort"))
	if err != nil {
		sendAppError(w, lc.logger, err)
		return
	}

	results := lc.listings.Query(query.Filter{Text: params.Get("q"), Category: category, SortBy: sortBy})
	sendJSON(w, http.StatusOK, listingsResponse{Listings: results, Count: len(results)})
}

// Show returns a single listing
func (lc *ListingController) Show(w http.ResponseWriter, r *http.Request) {
	listing, err := lc.listings.Get(mux.Vars(r)["id"])
	if err != nil {
		sendAppError(w, lc.logger, err)
		return
	}
	sendJSON(w, http.StatusOK, listing)
}

// Create publishes a listing from a JSON body
func (lc *ListingController) Create(w http.ResponseWriter, r *http.Request) {
	var input models.ListingInput
	if err := decodeJSON(r, &input); err != nil {
		sendAppError(w, lc.logger, err)
		return
	}

	listing, err := lc.listings.Create(r.Context(), &input)
	if err != nil {
		sendAppError(w, lc.logger, err)
		return
	}
	sendJSON(w, http.StatusCreated, listing)
}

// Delete removes a listing; unknown ids succeed too
func (lc *ListingController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := lc.listings.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		sendAppError(w, lc.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commentRequest struct {
	Text string `json:"text"`
}

// Comment appends a comment to a listing
func (lc *ListingController) Comment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		sendAppError(w, lc.logger, err)
		return
	}

	if err := lc.listings.AddComment(r.Context(), mux.Vars(r)["id"], req.Text); err != nil {
		sendAppError(w, lc.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats reports the dashboard counters
func (lc *ListingController) Stats(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, lc.listings.Stats())
}
