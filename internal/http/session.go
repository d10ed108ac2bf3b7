package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/session"
)

func sessionResponse(rec *session.Record) SessionResponse {
	if rec == nil {
		return SessionResponse{SignedIn: false}
	}
	return SessionResponse{SignedIn: true, User: rec, DisplayName: rec.DisplayName()}
}

func (s *Server) handleSession(c echo.Context) error {
	rec, _ := s.store.Load(c.Request().Context())
	return c.JSON(http.StatusOK, sessionResponse(rec))
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid signin request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	creds := session.Credentials{Name: req.Name, Email: req.Email, Password: req.Password}
	rec, err := s.store.SignInWith(c.Request().Context(), session.MockPasswordProvider{}, creds)
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(rec))
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid signup request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	payload := session.SignUpPayload(session.Credentials{Name: req.Name, Email: req.Email})
	rec, err := s.store.SignUp(c.Request().Context(), payload)
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResponse(rec))
}

func (s *Server) handleGoogle(c echo.Context) error {
	rec, err := s.store.SignInWith(c.Request().Context(), session.MockGoogleProvider{}, session.Credentials{})
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(rec))
}

func (s *Server) handleProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid profile request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	rec, err := s.store.UpdateProfile(c.Request().Context(), session.Profile{
		Name:     req.Name,
		Email:    req.Email,
		Avatar:   req.Avatar,
		Provider: req.Provider,
	})
	if err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(rec))
}

func (s *Server) handleSignOut(c echo.Context) error {
	if err := s.store.SignOut(c.Request().Context()); err != nil {
		return s.sessionError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResponse(nil))
}

func (s *Server) sessionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrNameRequired):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error(c.Request().Context(), "session operation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "session storage unavailable"})
	}
}
