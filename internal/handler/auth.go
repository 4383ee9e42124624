package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/model"
	"github.com/iliyamo/visit-reservation/internal/utils"
)

// AuthHandler logs in the single configured administrator.  There are no
// user accounts: the email and bcrypt hash come from configuration.
type AuthHandler struct {
	adminEmail   string
	passwordHash string
	secret       string
	ttl          time.Duration
	logger       *slog.Logger
}

// NewAuthHandler returns an AuthHandler issuing tokens valid for ttl.
func NewAuthHandler(adminEmail, passwordHash, secret string, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: passwordHash,
		secret:       secret,
		ttl:          ttl,
		logger:       logger,
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	ctx := c.Request().Context()
	log := logging.Resolve(ctx, h.logger, "email", email)
	emailOK := h.adminEmail != "" && subtle.ConstantTimeCompare([]byte(email), []byte(h.adminEmail)) == 1
	// Verify the hash even when the email is wrong.
	passwordOK := utils.VerifyPassword(h.passwordHash, req.Password)
	if !emailOK || !passwordOK {
		log.WarnContext(ctx, "admin login rejected")
		return writeProblem(c, model.NewProblem(http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"))
	}

	tok, err := utils.NewAccessToken(h.secret, h.adminEmail, utils.RoleAdmin, h.ttl)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	log.InfoContext(ctx, "admin logged in")
	return c.JSON(http.StatusOK, loginResp{AccessToken: tok.Token, TokenType: "Bearer", ExpiresAt: tok.Exp})
}
