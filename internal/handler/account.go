package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/candle-clicker/internal/model"
	"github.com/sakif/candle-clicker/internal/service"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// SearchResponse wraps search results in an object; the Unity JSON parser
// can not read a top-level array.
type SearchResponse struct {
	Users []model.AccountSummary `json:"users"`
}

// AccountHandler serves registration, login, search and profiles.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleRegister creates an account.
//
// HTTP: GET /register?username=...&password=...
// The game client sends credentials as query parameters.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := h.accounts.Register(r.Context(), q.Get("username"), q.Get("password"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Message: "registration successful", UserID: id})
}

// HandleLogin checks credentials and returns the account id.
//
// HTTP: GET /login?username=...&password=...
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := h.accounts.Login(r.Context(), q.Get("username"), q.Get("password"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Message: "login successful", UserID: id})
}

// HandleSearch finds accounts by username prefix.
//
// HTTP: GET /users/search?username=al
func (h *AccountHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.Search(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Users: users})
}

// HandleProfile returns an account's public profile and feed.
//
// HTTP: GET /profile/{userId}
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accounts.Profile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleSetPicture replaces the account's profile picture.
//
// HTTP: POST /profile/picture/{userId}
// REQUEST BODY: {"imageBase64": "iVBORw0KGgo..."}
func (h *AccountHandler) HandleSetPicture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var in service.PictureInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBodyError(w, h.logger, err)
		return
	}

	if err := h.accounts.SetProfilePicture(r.Context(), chi.URLParam(r, "userId"), in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "profile picture updated"})
}
