package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"doka-backend/internal/auth"
	"doka-backend/internal/config"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const JWTSecret = "test-secret-test-secret-test-secret!"

func Config() *config.Config {
	return &config.Config{
		JWTSecret:    JWTSecret,
		JWTTTL:       time.Hour,
		WriteTimeout: time.Second,
		EURRate:      decimal.NewFromInt(61),
	}
}

// NewApp returns a fiber app with the same error rendering as the server.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
}

// Do sends a request with an optional JSON body and bearer token and decodes
// the JSON response into out when out is not nil.
func Do(t *testing.T, app *fiber.App, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// OwnerToken signs a token for the seeded primary owner.
func OwnerToken(t *testing.T) string {
	t.Helper()
	return Token(t, auth.Identity{ID: 1, Username: OwnerUsername, Name: "Pronar", Role: models.RoleOwner})
}

func Token(t *testing.T, id auth.Identity) string {
	t.Helper()
	token, err := auth.GenerateToken(JWTSecret, time.Hour, id)
	require.NoError(t, err)
	return token
}
