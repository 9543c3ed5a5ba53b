package audit

import (
	"encoding/json"
	"fmt"

	"doka-backend/internal/auth"
	"doka-backend/internal/database"
	"doka-backend/internal/logger"
	"doka-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	Role        models.UserRole
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// jsonb columns need a JSON "null" rather than an empty string
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		Role:        opts.Role,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes an audit entry for the user of the current request. A failed
// write is logged and does not fail the request.
func Record(c *fiber.Ctx, entityType string, entityID any, action models.AuditAction, description string, before, after any) {
	me := auth.CurrentUser(c)
	err := WriteLog(LogOptions{
		UserID:      me.ID,
		UserName:    me.Name,
		Role:        me.Role,
		EntityType:  entityType,
		EntityID:    fmt.Sprint(entityID),
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	})
	if err != nil {
		logger.FromCtx(c).Warn("audit log not written",
			zap.String("entity_type", entityType),
			zap.Any("entity_id", entityID),
			zap.Error(err),
		)
	}
}
