package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"brokerboard/config"
	"brokerboard/logger"
	"brokerboard/models"
)

// Dex is a deployed broker frontend.
type Dex struct {
	ID           uint   `gorm:"primaryKey"`
	BrokerID     string `gorm:"column:broker_id;index"`
	BrokerName   string `gorm:"column:broker_name"`
	TokenAddress string `gorm:"column:token_address"`
	TokenChain   string `gorm:"column:token_chain"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Dex) TableName() string { return "dex" }

// Store answers broker metadata queries for the engine.
type Store struct {
	db           *gorm.DB
	demoBrokerID string
	log          *logger.Log
}

// Open connects using cfg.Driver ("postgres" or "sqlite").
func Open(cfg config.StoreConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver '%s'", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, cfg.DemoBrokerID), nil
}

func New(db *gorm.DB, demoBrokerID string) *Store {
	return &Store{db: db, demoBrokerID: demoBrokerID, log: logger.GetLogger()}
}

// Migrate creates the dex table when missing.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Dex{})
}

func (s *Store) DB() *gorm.DB { return s.db }

// ListBrokerIDs returns distinct, non-empty broker ids excluding the demo id.
// Order is unspecified.
func (s *Store) ListBrokerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Dex{}).
		Where("broker_id <> ? AND broker_id <> ''", s.demoBrokerID).
		Distinct().
		Pluck("broker_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list broker ids: %w", err)
	}
	return ids, nil
}

// BrokerName returns the display name, or "" when the broker is unknown.
func (s *Store) BrokerName(ctx context.Context, brokerID string) (string, error) {
	dex, err := s.first(ctx, brokerID)
	if err != nil || dex == nil {
		return "", err
	}
	return dex.BrokerName, nil
}

// TokenConfig returns the broker's configured token; it is zero when unknown.
func (s *Store) TokenConfig(ctx context.Context, brokerID string) (models.TokenConfig, error) {
	dex, err := s.first(ctx, brokerID)
	if err != nil || dex == nil {
		return models.TokenConfig{}, err
	}
	return models.TokenConfig{Address: dex.TokenAddress, Chain: dex.TokenChain}, nil
}

func (s *Store) first(ctx context.Context, brokerID string) (*Dex, error) {
	var dex Dex
	err := s.db.WithContext(ctx).Where("broker_id = ?", brokerID).Order("id").First(&dex).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load broker %s: %w", brokerID, err)
	}
	return &dex, nil
}
