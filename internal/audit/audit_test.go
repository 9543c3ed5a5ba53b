package audit_test

import (
	"net/http"
	"testing"

	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/models"
	"doka-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLogStoresJSON(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, audit.WriteLog(audit.LogOptions{
		UserID:     1,
		UserName:   "Pronar",
		Role:       models.RoleOwner,
		EntityType: "location",
		EntityID:   "shop1",
		Action:     models.AuditActionUpdate,
		Before:     map[string]string{"name": "Dyqani 1"},
		After:      map[string]string{"name": "Qendra"},
	}))

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.JSONEq(t, `{"name":"Dyqani 1"}`, log.BeforeData)
	assert.JSONEq(t, `{"name":"Qendra"}`, log.AfterData)
}

func TestRecordAndList(t *testing.T) {
	testutil.NewDB(t)
	cfg := testutil.Config()

	app := testutil.NewApp()
	api := app.Group("/api", auth.JWTMiddleware(cfg))
	api.Post("/things/:id", func(c *fiber.Ctx) error {
		audit.Record(c, "product", c.Params("id"), models.AuditActionDelete, "removed", map[string]int{"qty": 1}, nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	api.Get("/admin/audit-logs", audit.ListAuditLogsHandler())

	token, err := auth.GenerateToken(cfg.JWTSecret, cfg.JWTTTL, auth.Identity{ID: 3, Name: "Ana", Role: models.RoleWorker})
	require.NoError(t, err)

	testutil.Do(t, app, "POST", "/api/things/9", token, nil, nil)
	testutil.Do(t, app, "POST", "/api/things/10", token, nil, nil)

	var logs []audit.AuditLogResponse
	resp := testutil.Do(t, app, "GET", "/api/admin/audit-logs?entity_id=9", token, nil, &logs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, logs, 1)
	assert.Equal(t, "Ana", logs[0].UserName)
	assert.Equal(t, models.RoleWorker, logs[0].Role)
	assert.Equal(t, "null", logs[0].AfterData)

	resp = testutil.Do(t, app, "GET", "/api/admin/audit-logs?user_id=abc", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
