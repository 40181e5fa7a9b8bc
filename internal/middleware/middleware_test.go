package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/metrics"
	"infra-registry/internal/models"
)

type userMap map[uuid.UUID]*models.User

func (u userMap) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newApp(t *testing.T, tokens *TokenManager, users userMap) *fiber.App {
	t.Helper()
	log := zap.NewNop()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})
	app.Use(Metrics(metrics.New(prometheus.NewRegistry())))
	app.Use(Authenticate(tokens, users, log))
	app.Use(RequireUserForWrites(log))
	whoami := func(c *fiber.Ctx) error {
		if u := CurrentUser(c); u != nil {
			return c.SendString(u.Username)
		}
		return c.SendString("anonymous")
	}
	app.Get("/whoami", whoami)
	app.Post("/whoami", whoami)
	app.Get("/fail", func(c *fiber.Ctx) error {
		return apperrors.FieldError("name", "this field is required")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return assert.AnError
	})
	return app
}

func body(t *testing.T, resp io.Reader) string {
	t.Helper()
	data, err := io.ReadAll(resp)
	require.NoError(t, err)
	return string(data)
}

func TestAuthenticate(t *testing.T) {
	tokens := NewTokenManager("secret", time.Hour)
	user := &models.User{ID: uuid.New(), Username: "surveyor"}
	app := newApp(t, tokens, userMap{user.ID: user})

	token, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", body(t, resp.Body))

	req = httptest.NewRequest("POST", "/whoami", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "surveyor", body(t, resp.Body))

	other, err := NewTokenManager("other", time.Hour).GenerateToken(user)
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	stranger, err := tokens.GenerateToken(&models.User{ID: uuid.New()})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredToken(t *testing.T) {
	tokens := NewTokenManager("secret", -time.Minute)
	token, err := tokens.GenerateToken(&models.User{ID: uuid.New()})
	require.NoError(t, err)
	_, err = tokens.ValidateToken(token)
	assert.Error(t, err)
}

func TestErrorRendering(t *testing.T) {
	app := newApp(t, NewTokenManager("secret", time.Hour), userMap{})

	resp, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var payload struct {
		Error   bool                `json:"error"`
		Message string              `json:"message"`
		Fields  map[string][]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Error)
	assert.Equal(t, "validation failed", payload.Message)
	assert.Equal(t, []string{"this field is required"}, payload.Fields["name"])

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body(t, resp.Body), assert.AnError.Error())

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
