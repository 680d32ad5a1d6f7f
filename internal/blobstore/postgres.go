package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type blobRow struct {
	ID          uint   `gorm:"primaryKey"`
	Key         string `gorm:"column:blob_key;size:255;uniqueIndex"`
	ContentType string `gorm:"size:100"`
	Data        []byte `gorm:"type:bytea"`
	Size        int64
	CreatedAt   time.Time `gorm:"index"`
}

func (blobRow) TableName() string { return "drawing_blobs" }

// Postgres keeps drawings in a table; they are served through /blobs/{key}.
type Postgres struct {
	db   *gorm.DB
	base string
}

func NewPostgres(dsn, baseURL string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.AutoMigrate(&blobRow{}); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &Postgres{db: db, base: baseURL}, nil
}

func (p *Postgres) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	q := p.db.WithContext(ctx).
		Select("blob_key", "size", "created_at").
		Where("blob_key LIKE ?", escapeLike(prefix)+"%").
		Order("created_at DESC").
		Order("blob_key DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []blobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("postgres: list %q: %w", prefix, err)
	}

	objs := make([]Object, len(rows))
	for i, r := range rows {
		objs[i] = p.object(r)
	}
	return objs, nil
}

func (p *Postgres) Put(ctx context.Context, key string, body []byte, contentType string) (Object, error) {
	row := blobRow{Key: key, ContentType: contentType, Data: body, Size: int64(len(body))}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Object{}, fmt.Errorf("postgres: put %q: %w", key, err)
	}
	return p.object(row), nil
}

func (p *Postgres) Open(ctx context.Context, key string) ([]byte, string, error) {
	var row blobRow
	err := p.db.WithContext(ctx).Where("blob_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("postgres: open %q: %w", key, err)
	}
	return row.Data, row.ContentType, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) object(r blobRow) Object {
	return Object{Key: r.Key, URL: servedURL(p.base, r.Key), UploadedAt: r.CreatedAt, Size: r.Size}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
