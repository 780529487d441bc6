package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/boardauth"
	"github.com/MrEthical07/boardauth/middleware"
	"github.com/MrEthical07/boardauth/viewcount"
)

type handlers struct {
	auth  Auth
	views viewcount.Reader
	ready func(ctx context.Context) error
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type viewsResponse struct {
	PostID int64 `json:"post_id"`
	Views  int64 `json:"views"`
}

func (h *handlers) health(c echo.Context) error {
	if h.ready != nil {
		if err := h.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// login accepts a JSON body or the OAuth2 password form, where the email
// travels as username.
func (h *handlers) login(c echo.Context) error {
	var req loginRequest
	if isForm(c) {
		req.Email = c.FormValue("username")
		req.Password = c.FormValue("password")
	} else if err := c.Bind(&req); err != nil {
		return validationError(fieldError{Field: "body", Error: "malformed JSON"})
	}

	req.Email = strings.TrimSpace(req.Email)
	var fields []fieldError
	if req.Email == "" {
		fields = append(fields, fieldError{Field: "email", Error: "required"})
	}
	if req.Password == "" {
		fields = append(fields, fieldError{Field: "password", Error: "required"})
	}
	if len(fields) > 0 {
		return validationError(fields...)
	}

	pair, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *handlers) refresh(c echo.Context) error {
	token, err := bindRefreshToken(c)
	if err != nil {
		return err
	}

	pair, err := h.auth.Refresh(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *handlers) logout(c echo.Context) error {
	token, err := bindRefreshToken(c)
	if err != nil {
		return err
	}

	if err := h.auth.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func bindRefreshToken(c echo.Context) (string, error) {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return "", validationError(fieldError{Field: "body", Error: "malformed JSON"})
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		return "", validationError(fieldError{Field: "refresh_token", Error: "required"})
	}
	return token, nil
}

func (h *handlers) register(c echo.Context) error {
	var in boardauth.RegisterInput
	if err := c.Bind(&in); err != nil {
		return validationError(fieldError{Field: "body", Error: "malformed JSON"})
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Nickname = strings.TrimSpace(in.Nickname)

	var fields []fieldError
	switch {
	case in.Email == "":
		fields = append(fields, fieldError{Field: "email", Error: "required"})
	case len(in.Email) > 100 || !strings.Contains(in.Email, "@"):
		fields = append(fields, fieldError{Field: "email", Error: "must be an email address of at most 100 characters"})
	}
	switch {
	case in.Nickname == "":
		fields = append(fields, fieldError{Field: "nickname", Error: "required"})
	case len([]rune(in.Nickname)) > 80:
		fields = append(fields, fieldError{Field: "nickname", Error: "must be at most 80 characters"})
	}
	if in.Password == "" {
		fields = append(fields, fieldError{Field: "password", Error: "required"})
	}
	if len(fields) > 0 {
		return validationError(fields...)
	}

	user, err := h.auth.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *handlers) me(c echo.Context) error {
	user, ok := middleware.UserFromContext(c)
	if !ok {
		return boardauth.ErrInvalidToken
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handlers) adminUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	user, err := h.auth.UserByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handlers) postViews(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	views, err := h.views.Read(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewsResponse{PostID: id, Views: views})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError(fieldError{Field: "id", Error: "must be a positive integer"})
	}
	return id, nil
}

func isForm(c echo.Context) bool {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}
