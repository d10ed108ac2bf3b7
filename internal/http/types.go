package http

import (
	"encoding/json"

	"github.com/fyrsmithlabs/pricecast/internal/session"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PredictResponse describes the form after a submission, or its last result.
// Both estimates and failures are 200s: a failure is a display state.
type PredictResponse struct {
	State      string       `json:"state"`
	Prediction string       `json:"prediction,omitempty"`
	Amount     *json.Number `json:"amount,omitempty"`
	Thousands  *float64     `json:"thousands,omitempty"`
	Error      string       `json:"error,omitempty"`
	Kind       string       `json:"kind,omitempty"`
}

// StateResponse is the response body for GET /api/v1/predict/state.
type StateResponse struct {
	State string           `json:"state"`
	Last  *PredictResponse `json:"last,omitempty"`
}

// BackendHealthResponse mirrors the regression backend's /health.
type BackendHealthResponse struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ScalerLoaded bool   `json:"scaler_loaded"`
	Error        string `json:"error,omitempty"`
}

// SessionResponse is the response body for the session endpoints.
type SessionResponse struct {
	SignedIn    bool            `json:"signed_in"`
	User        *session.Record `json:"user,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
}

// SignInRequest is the body for POST /api/v1/session/signin and /signup.
type SignInRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ProfileRequest is the body for PATCH /api/v1/session/profile. Absent
// fields are left unchanged.
type ProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Avatar   *string `json:"avatar"`
	Provider *string `json:"provider"`
}
