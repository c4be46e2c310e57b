package middleware

import (
	"net/http"
	"strings"

	"github.com/clinicerp/backend/internal/infrastructure/logger"
	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header names and gin context keys for the caller identity
const (
	TenantIDKey          = "tenant_id"
	UserIDKey            = "user_id"
	TenantHeaderKey      = "X-Tenant-ID"
	UserHeaderKey        = "X-User-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// TenantValidator checks that a tenant may use the API
type TenantValidator interface {
	ValidateTenant(tenantID uuid.UUID) error
}

// TenantMiddlewareConfig holds configuration for tenant middleware
type TenantMiddlewareConfig struct {
	// SkipPaths are served without tenant context, e.g. /health
	SkipPaths []string
	// Required rejects requests without X-Tenant-ID
	Required bool
	// Validator optionally rejects unknown or suspended tenants
	Validator TenantValidator
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
		Required:  true,
	}
}

// TenantMiddleware reads the tenant from X-Tenant-ID
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration.
// The optional X-User-ID header becomes the actor of the request.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		raw := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
		if raw == "" {
			if cfg.Required {
				respondTenantError(c, http.StatusBadRequest, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			respondTenantError(c, http.StatusBadRequest, "Invalid tenant ID format")
			return
		}
		if cfg.Validator != nil {
			if err := cfg.Validator.ValidateTenant(tenantID); err != nil {
				log.Warn("Tenant validation failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
				respondTenantError(c, http.StatusForbidden, "Invalid or inactive tenant")
				return
			}
		}

		c.Set(TenantIDKey, tenantID)
		ctx := logger.WithTenantID(c.Request.Context(), tenantID)

		if userID, err := uuid.Parse(strings.TrimSpace(c.GetHeader(UserHeaderKey))); err == nil && userID != uuid.Nil {
			c.Set(UserIDKey, userID)
			ctx = logger.WithActor(ctx, userID.String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func respondTenantError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(dto.ErrCodeTenantRequired, message, GetRequestID(c)))
}

// GetTenantID returns the tenant stored by the tenant middleware
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetUserID returns the acting user, or nil when the request named none
func GetUserID(c *gin.Context) *uuid.UUID {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return nil
}
