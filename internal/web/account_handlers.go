// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"net/http"

	"github.com/quillblog/quill/internal/access"
	"github.com/quillblog/quill/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type accountUpdateRequest struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	AvatarRef *string `json:"avatar_ref"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusCreated, accountResponse{User: newAccountView(user), Message: msgAccountCreated})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, tok, err := a.auth.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Remember: req.Remember,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.setSessionCookie(w, tok)
	a.respond(w, r, http.StatusOK, loginResponse{
		User:      newAccountView(user),
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	})
}

// handleLogout expires the cookie. Sessions are stateless, so a copied token
// stays valid until it expires.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.auth.Logout(r.Context(), access.IdentityFromContext(r.Context()))
	a.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.CurrentUser(r.Context(), access.IdentityFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, accountResponse{User: newAccountView(user)})
}

func (a *API) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountUpdateRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.auth.UpdateAccount(r.Context(), access.IdentityFromContext(r.Context()), auth.AccountUpdate{
		Username:  req.Username,
		Email:     req.Email,
		AvatarRef: req.AvatarRef,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, accountResponse{User: newAccountView(user)})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	err := a.auth.ChangePassword(r.Context(), access.IdentityFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRequestReset answers the same way whether or not the email belongs
// to an account.
func (a *API) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.resets.RequestReset(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusAccepted, messageResponse{Message: msgResetRequested})
}

func (a *API) handleCheckResetToken(w http.ResponseWriter, r *http.Request) {
	if _, err := a.resets.ValidateToken(r.Context(), r.PathValue("token")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, messageResponse{Message: msgResetTokenAccepted})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.resets.ResetPassword(r.Context(), r.PathValue("token"), req.Password); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, messageResponse{Message: msgPasswordUpdated})
}
