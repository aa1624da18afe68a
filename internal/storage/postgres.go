package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skalibog/hypetrader/internal/config"
	"github.com/skalibog/hypetrader/pkg/models"
)

// TradeRow строка журнала сделок
type TradeRow struct {
	ID         string `gorm:"primaryKey;size:36"`
	Venue      string `gorm:"index:idx_trades_key;size:32"`
	Instrument string `gorm:"index:idx_trades_key;size:32"`
	Side       string `gorm:"size:8"`
	Quantity   float64
	Entry      float64
	Exit       float64
	PnL        float64 `gorm:"column:pnl"`
	OpenedAt   time.Time
	ClosedAt   time.Time `gorm:"index"`
}

// TableName имя таблицы журнала
func (TradeRow) TableName() string {
	return "trades"
}

// NewTradeRow переводит сделку в строку журнала
func NewTradeRow(t models.Trade) TradeRow {
	return TradeRow{
		ID:         t.ID,
		Venue:      t.Venue,
		Instrument: t.Instrument,
		Side:       string(t.Side),
		Quantity:   t.Quantity,
		Entry:      t.Entry,
		Exit:       t.Exit,
		PnL:        t.PnL,
		OpenedAt:   t.OpenedAt.UTC(),
		ClosedAt:   t.ClosedAt.UTC(),
	}
}

// PostgresJournal журнал закрытых сделок в PostgreSQL. Остальные данные не сохраняет.
type PostgresJournal struct {
	db *gorm.DB
}

// NewPostgresJournal подключается к базе и создает таблицу сделок
func NewPostgresJournal(cfg config.PostgresConfig) (*PostgresJournal, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}
	if err := db.AutoMigrate(&TradeRow{}); err != nil {
		return nil, fmt.Errorf("ошибка миграции таблицы сделок: %w", err)
	}
	return &PostgresJournal{db: db}, nil
}

// SaveTrade сохраняет сделку; повторная запись той же сделки игнорируется
func (j *PostgresJournal) SaveTrade(ctx context.Context, trade models.Trade) error {
	row := NewTradeRow(trade)
	err := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("ошибка записи сделки в журнал: %w", err)
	}
	return nil
}

func (j *PostgresJournal) SaveCandles(context.Context, string, []*models.Candle) error { return nil }

func (j *PostgresJournal) SaveSignal(context.Context, *models.SignalResult) error { return nil }

func (j *PostgresJournal) SaveEquity(context.Context, string, models.EquitySnapshot) error {
	return nil
}

// Close закрывает пул соединений
func (j *PostgresJournal) Close() {
	if sqlDB, err := j.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
