// Package db implements the repositories on Postgres via gorm. When no
// DSN is configured the process falls back to the in-memory stores, so
// everything here assumes a live database handle.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	DB *gorm.DB
}

// NewStore opens a Postgres connection when dsn is non-empty. An empty
// dsn yields a disabled store; callers check Enabled and wire the
// in-memory repositories instead.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		return &Store{}, nil
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Store{DB: gdb}, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Store) AutoMigrate() error {
	if !s.Enabled() {
		return nil
	}
	return s.DB.AutoMigrate(&ContractModel{}, &AuditEntryModel{}, &CertificateModel{})
}
