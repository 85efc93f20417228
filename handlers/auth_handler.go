package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"barber-queue/clients"
	"barber-queue/services"
)

// AuthHandler forwards credentials to the backend and manages the daemon's
// remembered identity. Credential validation is entirely server-side.
type AuthHandler struct {
	api     *clients.BarberAPI
	session *services.Session
}

func NewAuthHandler(api *clients.BarberAPI, session *services.Session) *AuthHandler {
	return &AuthHandler{api: api, session: session}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
	e.POST("/auth/signup", h.Signup)
	e.GET("/auth/email-exists", h.EmailExists)
	e.POST("/auth/logout", h.Logout)
	e.GET("/auth/me", h.Me)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	account, err := h.session.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, account)
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req clients.SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signup request")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username, email and password are required")
	}

	account, err := h.api.Signup(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, account)
}

// EmailExists backs the live signup-form check.
func (h *AuthHandler) EmailExists(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	exists, err := h.api.CheckEmailExists(c.Request().Context(), email)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me reports the remembered identity, if any.
func (h *AuthHandler) Me(c echo.Context) error {
	account, ok := h.session.Account()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	return c.JSON(http.StatusOK, account)
}
