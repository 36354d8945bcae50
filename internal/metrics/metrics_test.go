package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/gigs/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/gigs/:id", "418"))

	resp, err := app.Test(httptest.NewRequest("GET", "/gigs/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/gigs/:id", "418"))
	assert.Equal(t, before+1, after)
}
