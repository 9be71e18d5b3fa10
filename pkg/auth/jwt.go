package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience внутренних токенов, общая для всех сервисов саги
const InternalAudience = "saga-internal"

// ServiceClaims содержит имя сервиса-отправителя и стандартные JWT claims
type ServiceClaims struct {
	ServiceName string `json:"service_name"`
	jwt.RegisteredClaims
}

// Config содержит настройки для внутренних JWT токенов
type Config struct {
	SigningKey    string
	TokenTTL      time.Duration
	SigningMethod jwt.SigningMethod
}

func NewConfig(signingKey string, tokenTTL time.Duration) *Config {
	if tokenTTL <= 0 {
		tokenTTL = time.Minute
	}
	return &Config{
		SigningKey:    signingKey,
		TokenTTL:      tokenTTL,
		SigningMethod: jwt.SigningMethodHS256,
	}
}

// JWTManager выпускает и проверяет внутренние межсервисные токены.
// Паблишер outbox подписывает каждый исходящий запрос, endpoints участников
// проверяют подпись тем же общим ключом.
type JWTManager struct {
	config *Config
}

func NewJWTManager(config *Config) *JWTManager {
	return &JWTManager{
		config: config,
	}
}

// Enabled сообщает, включена ли проверка токенов (ключ подписи задан)
func (m *JWTManager) Enabled() bool {
	return m.config.SigningKey != ""
}

// GenerateServiceToken создаёт короткоживущий токен от имени сервиса
func (m *JWTManager) GenerateServiceToken(serviceName string) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		ServiceName: serviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    serviceName,
			Audience:  []string{InternalAudience},
		},
	}

	token := jwt.NewWithClaims(m.config.SigningMethod, claims)
	return token.SignedString([]byte(m.config.SigningKey))
}

// ParseServiceToken проверяет валидность токена и извлекает из него данные
func (m *JWTManager) ParseServiceToken(tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return []byte(m.config.SigningKey), nil
	}, jwt.WithAudience(InternalAudience))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ServiceClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("недействительный токен")
}
