// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/access"
	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/blog"
	"github.com/quillblog/quill/pkg/errutil"
)

// Codes produced by this package rather than the services.
const (
	CodeInvalidJSON          = "INVALID_JSON"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeInternal             = "INTERNAL"
)

const maxBodyBytes = 1 << 20

// Public messages. Token failures share one message whatever the reason.
const (
	msgInvalidToken       = "That is an invalid or expired token"
	msgLoginRequired      = "Please log in to access this page."
	msgForbidden          = "You do not have permission to modify this resource."
	msgLoginFailed        = "Login unsuccessful. Please check email and password."
	msgAccountLocked      = "Too many failed login attempts. Please try again later."
	msgUsernameTaken      = "That username is taken. Please choose a different one."
	msgEmailTaken         = "That email is taken. Please choose a different one."
	msgAlreadyLoggedIn    = "You are already logged in."
	msgInvalidJSON        = "Invalid request body."
	msgInternal           = "Something went wrong."
	msgAccountCreated     = "Your account has been created! You are now able to log in"
	msgResetRequested     = "An email has been sent with instructions to reset your password."
	msgPasswordUpdated    = "Your password has been updated! You are now able to log in"
	msgResetTokenAccepted = "The reset token is valid."
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// classify maps a service error onto an HTTP status and the body the client sees.
func classify(err error) (int, apiError) {
	code := errutil.Code(err)
	switch {
	case auth.IsTokenError(err):
		return http.StatusBadRequest, apiError{Code: CodeInvalidToken, Message: msgInvalidToken}
	case access.IsUnauthorized(err):
		return http.StatusUnauthorized, apiError{Code: access.CodeUnauthorized, Message: msgLoginRequired}
	case access.IsForbidden(err):
		return http.StatusForbidden, apiError{Code: access.CodeForbidden, Message: msgForbidden}
	case code == auth.CodeValidation:
		return http.StatusBadRequest, apiError{Code: code, Message: err.Error(), Field: field(err)}
	case code == CodeInvalidJSON:
		return http.StatusBadRequest, apiError{Code: code, Message: msgInvalidJSON}
	case code == auth.CodeUsernameTaken:
		return http.StatusConflict, apiError{Code: code, Message: msgUsernameTaken, Field: "username"}
	case code == auth.CodeEmailTaken:
		return http.StatusConflict, apiError{Code: code, Message: msgEmailTaken, Field: "email"}
	case code == auth.CodeInvalidCredentials:
		return http.StatusUnauthorized, apiError{Code: code, Message: msgLoginFailed}
	case code == auth.CodeAccountLocked:
		return http.StatusTooManyRequests, apiError{Code: code, Message: msgAccountLocked}
	case code == blog.CodeOwnerNotFound:
		// The session outlived its account.
		return http.StatusUnauthorized, apiError{Code: access.CodeUnauthorized, Message: msgLoginRequired}
	case auth.IsNotFound(err), blog.IsNotFound(err):
		return http.StatusNotFound, apiError{Code: code, Message: "Not found."}
	}
	return http.StatusInternalServerError, apiError{Code: CodeInternal, Message: msgInternal}
}

func field(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	f, _ := oopsErr.Context()["field"].(string)
	return f
}

func writeJSON(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugContext(ctx, "response write failed", "error", err)
	}
}

func (a *API) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	writeJSON(r.Context(), a.logger, w, status, v)
}

// fail renders err. Server faults are logged with their code and context;
// client faults only at debug.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if d := auth.RetryAfter(err); d > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10))
	}
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), a.logger, slog.LevelError, "request failed", err)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", "code", body.Code, "status", status)
	}
	a.respond(w, r, status, errorEnvelope{Error: body})
}

// decode reads a single JSON object into dst, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return oops.Code(CodeInvalidJSON).Wrap(err)
	}
	if dec.More() {
		return oops.Code(CodeInvalidJSON).Wrap(errors.New("trailing data after JSON object"))
	}
	return nil
}
