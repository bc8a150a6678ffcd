package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BasicAuthConfig конфигурация для Basic-аутентификации оператора
type BasicAuthConfig struct {
	// Username имя оператора
	Username string
	// Password пароль оператора
	Password string
	// Realm значение для заголовка WWW-Authenticate
	Realm string
}

// BasicAuth middleware со stateless-проверкой пары логин/пароль на каждом
// запросе; сессии не создаются
type BasicAuth struct {
	config BasicAuthConfig
}

// NewBasicAuth создаёт новый Basic auth middleware
func NewBasicAuth(config BasicAuthConfig) *BasicAuth {
	if config.Realm == "" {
		config.Realm = "geolink admin"
	}
	return &BasicAuth{config: config}
}

// Middleware возвращает Gin middleware handler для Basic-аутентификации
func (ba *BasicAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()

		// Проверка обеих частей constant-time сравнением, без ранних выходов
		// по отдельным полям
		userOK := subtle.ConstantTimeCompare([]byte(username), []byte(ba.config.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(password), []byte(ba.config.Password)) == 1

		if !ok || !userOK || !passOK {
			c.Header("WWW-Authenticate", `Basic realm="`+ba.config.Realm+`"`)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется аутентификация оператора",
			})
			c.Abort()
			return
		}

		c.Set("admin_user", username)
		c.Next()
	}
}

// RequireBasicAuth хелпер для создания middleware из пары логин/пароль
func RequireBasicAuth(username, password string) gin.HandlerFunc {
	ba := NewBasicAuth(BasicAuthConfig{
		Username: username,
		Password: password,
	})
	return ba.Middleware()
}
