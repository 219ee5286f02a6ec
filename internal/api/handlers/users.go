package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/listsync/internal/auth"
	"github.com/Togather-Foundation/listsync/internal/domain/errs"
	"github.com/Togather-Foundation/listsync/internal/domain/users"
)

type UsersHandler struct {
	Service *users.Service
	Env     string
}

func NewUsersHandler(service *users.Service, env string) *UsersHandler {
	return &UsersHandler{Service: service, Env: env}
}

// Register handles POST /api/v1/users/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input users.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	session, err := h.Service.Register(r.Context(), input)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusCreated, "User created successfully", session)
}

// Login handles POST /api/v1/users/login. Unknown emails and wrong
// passwords get the same answer.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input users.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	session, err := h.Service.Login(r.Context(), input)
	if err != nil {
		switch errs.KindOf(err) {
		case errs.KindNotFound, errs.KindUnauthenticated:
			err = &errs.Error{Kind: errs.KindUnauthenticated, Message: "Invalid credentials", Err: err}
		}
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "Login successful", session)
}

// List handles GET /api/v1/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "", all)
}

// Delete handles DELETE /api/v1/users/{id}. Accounts can only delete
// themselves.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	if id != auth.ActorID(r.Context()) {
		writeError(w, r, errs.Forbidden("You can only delete your own account"), h.Env)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeData(w, http.StatusOK, "User deleted successfully", nil)
}
