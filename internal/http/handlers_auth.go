package http

import (
	"errors"
	"net/http"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateAccountRequest struct {
	Name            *string `json:"name"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

// accountError maps account failures to a status and client message.
func accountError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmailTaken):
		return http.StatusBadRequest, "Email already registered"
	case errors.Is(err, core.ErrInvalidEmail):
		return http.StatusBadRequest, "Invalid email address"
	case errors.Is(err, core.ErrEmptyName):
		return http.StatusBadRequest, "Name cannot be empty"
	case errors.Is(err, core.ErrPasswordTooShort):
		return http.StatusBadRequest, "New password must be at least 6 characters"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, services.ErrCurrentPasswordRequired):
		return http.StatusBadRequest, "Current password required to change password"
	case errors.Is(err, services.ErrCurrentPasswordIncorrect):
		return http.StatusBadRequest, "Current password is incorrect"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.deps.Accounts.Register(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if err != nil {
		status, detail := accountError(err)
		if errors.Is(err, core.ErrPasswordTooShort) {
			detail = "Password must be at least 6 characters"
		}
		if status == http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Registration failed", log.FieldError, err)
		}
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.deps.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		status, detail := accountError(err)
		if status == http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed", log.FieldError, err)
		}
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, services.ProfileOf(u))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	upd := services.AccountUpdate{Name: sanitizePtr(req.Name)}
	if req.CurrentPassword != nil {
		upd.CurrentPassword = *req.CurrentPassword
	}
	if req.NewPassword != nil {
		upd.NewPassword = *req.NewPassword
	}

	updated, err := s.deps.Accounts.Update(r.Context(), u, upd)
	if err != nil {
		status, detail := accountError(err)
		if status == http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Account update failed",
				log.FieldUserID, u.ID, log.FieldError, err)
		}
		writeError(w, status, detail)
		return
	}
	writeJSON(w, http.StatusOK, services.ProfileOf(updated))
}
