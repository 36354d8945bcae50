package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	Auth            *AuthHandler
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string

	// UserInfoURL overrides the Google endpoint in tests.
	UserInfoURL string
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) tempCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.Auth.SecureCookie,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	if h.GoogleClientID == "" {
		return respondError(c, apperr.New("NOT_CONFIGURED", "google sign-in is not configured", fiber.StatusServiceUnavailable, nil))
	}
	next := c.Query("next", "/")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	st := randomState(32)

	h.tempCookie(c, "oauth_state", st, 10*60)
	h.tempCookie(c, "oauth_next", next, 10*60)

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOffline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		return respondError(c, apperr.BadRequest("missing code or state", nil))
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/"
	}
	if stCookie == "" || stCookie != state {
		return respondError(c, apperr.BadRequest("invalid oauth state", nil))
	}

	tok, err := h.oauthCfg().Exchange(c.UserContext(), code)
	if err != nil {
		return respondError(c, apperr.BadRequest("could not exchange code", err))
	}

	infoURL := h.UserInfoURL
	if infoURL == "" {
		infoURL = googleUserInfoURL
	}
	resp, err := h.oauthCfg().Client(c.UserContext(), tok).Get(infoURL)
	if err != nil {
		return respondError(c, apperr.BadRequest("could not fetch google profile", err))
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return respondError(c, apperr.BadRequest("could not decode google profile", err))
	}

	p, err := h.Auth.Profiles.UpsertGoogle(c.UserContext(), profiles.GoogleUser{
		Email:   gu.Email,
		Name:    gu.Name,
		Picture: gu.Picture,
	})
	if err != nil {
		if apperr.Is(err, "FORBIDDEN") {
			return c.Redirect(h.FrontendBaseURL+"/auth/login?err="+url.QueryEscape("account is inactive"), http.StatusTemporaryRedirect)
		}
		logger.WithCtx(c.UserContext()).Warn("google sign-in failed", "email", gu.Email, "err", err)
		return respondError(c, err)
	}

	if _, err := h.Auth.setSession(c, p); err != nil {
		return respondError(c, err)
	}
	h.tempCookie(c, "oauth_state", "", -1)
	h.tempCookie(c, "oauth_next", "", -1)

	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}
