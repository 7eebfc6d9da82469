package middleware

import (
	"bytes"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey)
		return c.SendString(rid.(string))
	})

	t.Run("generates new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("preserves existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	app := fiber.New()
	app.Use(RequestID())
	app.Use(Logger(zap.New(core)))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()

	assert.Equal(t, "http request", entry.Message)
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/test", fields["path"])
	assert.Equal(t, int64(fiber.StatusAccepted), fields["status"])
	assert.NotNil(t, fields["latency_ms"])
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"

	newApp := func(secret string) *fiber.App {
		app := fiber.New()
		app.Use(RequestID())
		app.Use(BearerAuth(secret))
		app.Get("/test", func(c *fiber.Ctx) error {
			sub, _ := c.Locals(SubjectLocalKey).(string)
			return c.SendString(sub)
		})
		return app
	}

	sign := func(t *testing.T, secret string, claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	t.Run("accepts a valid token", func(t *testing.T) {
		app := newApp(secret)
		signed := sign(t, secret, jwt.MapClaims{
			"sub": "ops-user",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, "ops-user", buf.String())
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		app := newApp(secret)
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		app := newApp(secret)
		signed := sign(t, "other-secret", jwt.MapClaims{"sub": "ops-user"})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		app := newApp(secret)
		signed := sign(t, secret, jwt.MapClaims{
			"sub": "ops-user",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("empty secret disables auth", func(t *testing.T) {
		app := newApp("")
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
