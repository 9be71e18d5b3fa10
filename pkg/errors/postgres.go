package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Код unique_violation в PostgreSQL
const pgUniqueViolationCode = "23505"

// IsUniqueViolation проверяет, является ли ошибка нарушением уникального
// ограничения PostgreSQL. Имя ограничения передается опционально: пустой
// constraint означает "любое уникальное ограничение".
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != pgUniqueViolationCode {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
