package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stall-dashboard/internal/config"
	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/repository"
	"github.com/iliyamo/stall-dashboard/internal/utils"
)

const dbTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Logger *slog.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"` // user | rental; empty means user
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}

// issue creates an access/refresh pair and stores the refresh hash.
// mint builds a token pair for u and returns the refresh token's hash for
// storage.
func (h *AuthHandler) mint(u userPart) (authResp, string, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, "", err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, "", err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, utils.HashRefreshRaw(refresh.Raw), nil
}

func (h *AuthHandler) issue(ctx context.Context, u userPart) (authResp, error) {
	resp, hash, err := h.mint(u)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, hash, resp.Refresh.Expires); err != nil {
		return authResp{}, err
	}
	return resp, nil
}

// Register creates a user and returns tokens immediately.  The role
// defaults to user; admin cannot be self-assigned.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Logger, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	role := rbac.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		r, err := rbac.ParseRole(req.Role)
		if err != nil || r == rbac.RoleAdmin {
			return fail(c, h.Logger, invalidInput("role must be user or rental"))
		}
		role = r
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, email, req.Password, string(role), h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	resp, err := h.issue(ctx, userPart{ID: uid, Email: email, Role: string(role)})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return created(c, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Logger, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c, "invalid credentials")
		}
		return fail(c, h.Logger, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return unauthorized(c, "invalid credentials")
	}
	resp, err := h.issue(ctx, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return ok(c, resp)
}

func (h *AuthHandler) refreshToken(c echo.Context) (string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return "", invalidInput("invalid request body")
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return "", missingField("missing required field: refresh_token")
	}
	return raw, nil
}

// Refresh validates a refresh token by hash and swaps it for a new pair.
// Only one of two concurrent refreshes with the same token succeeds.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, err := h.refreshToken(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidToken) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Logger, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Logger, err)
	}
	resp, next, err := h.mint(userPart{ID: u.ID, Email: u.Email, Role: u.Role})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if err := h.Tokens.Rotate(ctx, hash, u.ID, next, resp.Refresh.Expires); err != nil {
		if errors.Is(err, repository.ErrInvalidToken) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Logger, err)
	}
	return ok(c, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	raw, err := h.refreshToken(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		if errors.Is(err, repository.ErrInvalidToken) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Logger, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Logger, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return ok(c, echo.Map{"access": tokenPart{Token: access.Token, Expires: access.Exp}})
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an Authorization header is present.
// The route is public so a client holding only a refresh token can still
// log out.
func (h *AuthHandler) Logout(c echo.Context) error {
	var (
		uid       uint64
		hasBearer bool
	)
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid, _ = claims.UserID()
			hasBearer = uid != 0
		}
	}

	var req refreshReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	switch {
	case refresh != "":
		hash := utils.HashRefreshRaw(refresh)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrInvalidToken) {
				return unauthorized(c, "invalid refresh token")
			}
			return fail(c, h.Logger, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, h.Logger, err)
		}
	case hasBearer:
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return fail(c, h.Logger, err)
		}
	default:
		return fail(c, h.Logger, missingField("provide Authorization header or refresh_token"))
	}
	return ok(c, nil)
}

type meResp struct {
	User         userPart          `json:"user"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// Me returns the caller's account and what its role may do.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _, found := middleware.CurrentUser(c)
	if !found {
		return unauthorized(c, "unauthorized")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	resp := meResp{User: userPart{ID: u.ID, Email: u.Email, Role: u.Role}, Capabilities: []rbac.Capability{}}
	if set, err := rbac.CapabilitiesOf(rbac.Role(u.Role)); err == nil {
		resp.Capabilities = set.List()
	} else {
		h.Logger.Error("user has unknown role", slog.Uint64("user_id", u.ID), slog.String("role", u.Role))
	}
	return ok(c, resp)
}

type setRoleReq struct {
	Role string `json:"role" validate:"required"`
}

// SetRole handles PUT /v1/admin/users/:id/role.  Existing access tokens
// keep the old role until they expire, so the user's refresh tokens are
// revoked as well.
func (h *AuthHandler) SetRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req setRoleReq
	if err := bind(c, &req); err != nil {
		return fail(c, h.Logger, err)
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		return fail(c, h.Logger, invalidInput("role must be admin, user or rental"))
	}
	if caller, _, _ := middleware.CurrentUser(c); caller == id && role != rbac.RoleAdmin {
		return fail(c, h.Logger, repository.ErrConflict)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, id, string(role)); err != nil {
		return fail(c, h.Logger, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		return fail(c, h.Logger, err)
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return ok(c, userPart{ID: u.ID, Email: u.Email, Role: u.Role})
}
