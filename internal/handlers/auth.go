package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/utils"
)

type AuthHandler struct {
	Profiles     *profiles.Service
	JWTSecret    string
	Expires      int
	SecureCookie bool
}

type authResponse struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

func (h *AuthHandler) setSession(c *fiber.Ctx, p *models.Profile) (string, error) {
	token, err := utils.SignJWT(h.JWTSecret, p.ID.String(), string(p.Role), h.Expires)
	if err != nil {
		return "", apperr.Internal("could not sign token", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     utils.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return token, nil
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req profiles.SignupInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	p, err := h.Profiles.Signup(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	token, err := h.setSession(c, p)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "signup successful", authResponse{Token: token, Profile: p})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req profiles.LoginInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	p, err := h.Profiles.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	token, err := h.setSession(c, p)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "login successful", authResponse{Token: token, Profile: p})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     utils.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.SecureCookie,
		SameSite: "Lax",
	})
	return ok(c, "logged out", nil)
}

// Me returns the caller's own profile, contact details included.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.Profiles.GetByID(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", p)
}
