package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"обычная ошибка", errors.New("boom"), false},
		{"нарушение уникальности", &pgconn.PgError{Code: "23505"}, false},
		{"обрыв соединения", &pgconn.PgError{Code: "08006"}, true},
		{"connection_exception", &pgconn.PgError{Code: "08000"}, true},
		{"admin_shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"cannot_connect_now", &pgconn.PgError{Code: "57P03"}, true},
		{"сентинел", fmt.Errorf("транзакция: %w", ErrUnavailable), true},
		{"обёрнутая ошибка соединения",
			fmt.Errorf("получение события: %w", &pgconn.PgError{Code: "08006"}), true},
		{"обёрнутая ошибка запроса",
			fmt.Errorf("получение события: %w", &pgconn.PgError{Code: "42601"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable(%v) = %v, хотели %v", tt.err, got, tt.want)
			}
		})
	}
}
