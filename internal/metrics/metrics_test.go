package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/products/:id", func(c *fiber.Ctx) error {
		if c.Params("id") == "0" {
			return fiber.NewError(fiber.StatusNotFound, "missing")
		}
		return c.SendString("ok")
	})
	app.Get("/metrics", Handler())

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products/:id", "200"))
	missing := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products/:id", "404"))

	for _, path := range []string{"/api/products/1", "/api/products/2", "/api/products/0"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products/:id", "200")))
	assert.Equal(t, missing+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products/:id", "404")))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "doka_http_requests_total")
}
