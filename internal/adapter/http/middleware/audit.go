package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	method string
	path   string
}

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
	resourceID   string // name of the path param that identifies the resource
}

var auditedRoutes = map[auditRoute]auditTarget{
	{http.MethodPost, "/api/v1/auth/register"}:    {domain.AuditActionRegister, "account", ""},
	{http.MethodPost, "/api/v1/auth/login"}:       {domain.AuditActionLogin, "session", ""},
	{http.MethodPost, "/api/v1/auth/refresh"}:     {domain.AuditActionRefreshToken, "session", ""},
	{http.MethodPut, "/api/v1/me"}:                {domain.AuditActionUpdateProfile, "account", ""},
	{http.MethodPost, "/api/v1/transfers"}:        {domain.AuditActionTransfer, "ledger_entry", ""},
	{http.MethodPost, "/api/v1/recharges"}:        {domain.AuditActionRecharge, "ledger_entry", ""},
	{http.MethodPut, "/api/v1/cards/:id/default"}: {domain.AuditActionSetDefault, "card", "id"},
	{http.MethodDelete, "/api/v1/cards/:id"}:      {domain.AuditActionDeleteCard, "card", "id"},
}

// AuditLog creates an audit middleware that records successful write operations.
// Routes are matched on their registered pattern, so it must run inside the gin engine.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		target, ok := mapRouteToAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		var accountID *uuid.UUID
		if id, exists := AccountID(c); exists {
			accountID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			AccountID:    accountID,
			Action:       target.action,
			ResourceType: target.resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		}
		if target.resourceID != "" {
			entry.ResourceID = c.Param(target.resourceID)
		}

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(method, fullPath string) (auditTarget, bool) {
	target, ok := auditedRoutes[auditRoute{method, fullPath}]
	return target, ok
}
