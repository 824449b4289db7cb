package app

import (
	"strings"

	"github.com/shrimpsizemoose/lussekatt/internal/store"
	"github.com/shrimpsizemoose/lussekatt/internal/store/postgres"
	"github.com/shrimpsizemoose/lussekatt/internal/store/sqlite"
)

func NewStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres") {
		return postgres.NewPostgresStore(dsn)
	}
	return sqlite.NewSQLiteStore(dsn)
}
