package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// InternalAuthMiddleware middleware для защиты доступа к внутренним API.
// Forward- и compensation-endpoints участников саги доступны только сервисам,
// предъявившим валидный внутренний токен.
type InternalAuthMiddleware struct {
	jwtManager *JWTManager
}

// NewInternalAuthMiddleware создает новый middleware для защиты внутренних API
func NewInternalAuthMiddleware(jwtManager *JWTManager) *InternalAuthMiddleware {
	return &InternalAuthMiddleware{
		jwtManager: jwtManager,
	}
}

// Required требует авторизации для доступа к внутренним API.
// При пустом ключе подписи проверка отключена (режим разработки).
func (m *InternalAuthMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.jwtManager.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "отсутствует внутренний токен авторизации",
			})
			return
		}

		claims, err := m.jwtManager.ParseServiceToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "недействительный внутренний токен",
			})
			return
		}

		c.Set("service_name", claims.ServiceName)
		c.Next()
	}
}
