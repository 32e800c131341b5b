package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type matchRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Room       string    `gorm:"index;not null"`
	Winner     string
	WinnerName string
	Players    int
	Ticks      int
	EndedAt    time.Time `gorm:"index"`
}

func (matchRow) TableName() string { return "match_results" }

type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects through pgx and migrates the match table.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	sqlDB := stdlib.OpenDB(*cfg)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&matchRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) RecordMatch(ctx context.Context, r MatchResult) error {
	if r.Room == "" {
		return ErrEmptyRoom
	}
	r = withDefaults(r)
	row := matchRow{
		ID:         r.ID,
		Room:       r.Room,
		Winner:     r.Winner,
		WinnerName: r.WinnerName,
		Players:    r.Players,
		Ticks:      r.Ticks,
		EndedAt:    r.EndedAt,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

func (p *Postgres) ListMatches(ctx context.Context, room string, limit int) ([]MatchResult, error) {
	q := p.db.WithContext(ctx).Order("ended_at DESC")
	if room != "" {
		q = q.Where("room = ?", room)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []matchRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	out := make([]MatchResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, MatchResult{
			ID:         row.ID,
			Room:       row.Room,
			Winner:     row.Winner,
			WinnerName: row.WinnerName,
			Players:    row.Players,
			Ticks:      row.Ticks,
			EndedAt:    row.EndedAt,
		})
	}
	return out, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
