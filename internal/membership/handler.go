// internal/membership/handler.go
package membership

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"libris/internal/apperr"
	"libris/internal/httpx"
)

// TokenIssuer mints access tokens for authenticated users. Implemented by
// the auth package.
type TokenIssuer interface {
	Issue(user *User) (string, error)
}

// Handler exposes registration, login and user administration over HTTP.
type Handler struct {
	service  Service
	tokens   TokenIssuer
	validate *validator.Validate
	perPage  int
}

// NewHandler creates a membership handler.
func NewHandler(service Service, tokens TokenIssuer, perPage int) *Handler {
	return &Handler{
		service:  service,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		perPage:  perPage,
	}
}

// userResponse is the outward account view without credentials.
type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"is_active"`
}

func newUserResponse(u *User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"required,email"`
}

// HandleRegister creates a new reader account.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidRequest, "invalid registration payload", err))
		return
	}

	user, err := h.service.Register(r.Context(), RegisterParams{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"user": newUserResponse(user)})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues an access token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidCredentials, "username and password are required", err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         newUserResponse(user),
	})
}

// HandleLogout exists for API symmetry; tokens are stateless, the client
// just discards its copy.
func (h *Handler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

// HandleListUsers pages through accounts. Admin only.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r, h.perPage)

	filter := Filter{}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := Role(raw)
		if role.Valid() {
			filter.Role = &role
		}
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}

	users, total, err := h.service.ListUsers(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	responses := make([]userResponse, len(users))
	for i, u := range users {
		responses[i] = newUserResponse(u)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":      responses,
		"pagination": httpx.NewPagination(page, total),
	})
}

// HandleGetUser returns one account. Admin only.
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid user id"))
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": newUserResponse(user)})
}

type updateUserRequest struct {
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin reader"`
}

// HandleUpdateUser toggles the active flag or changes the role. Admin only.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid user id"))
		return
	}

	var req updateUserRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidRequest, "invalid user payload", err))
		return
	}

	params := UpdateUserParams{IsActive: req.IsActive}
	if req.Role != nil {
		role := Role(*req.Role)
		params.Role = &role
	}

	user, err := h.service.UpdateUser(r.Context(), id, params)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": newUserResponse(user)})
}
