package settings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupSetting is the gorm model for one persisted setting value.
type GroupSetting struct {
	ID        uint   `gorm:"primarykey"`
	GroupID   string `gorm:"uniqueIndex:idx_group_setting;not null"`
	Key       string `gorm:"uniqueIndex:idx_group_setting;not null"`
	Value     []byte
	UpdatedAt time.Time
}

// GormStore persists settings in a SQL database (sqlite in the default
// deployment).
type GormStore struct {
	DB *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&GroupSetting{}); err != nil {
		return nil, err
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Get(ctx context.Context, group, key string) ([]byte, error) {
	var row GroupSetting
	err := s.DB.WithContext(ctx).Where("group_id = ? AND key = ?", group, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (s *GormStore) Set(ctx context.Context, group, key string, val []byte) error {
	row := GroupSetting{
		GroupID: group,
		Key:     key,
		Value:   val,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, group, key string) error {
	return s.DB.WithContext(ctx).Where("group_id = ? AND key = ?", group, key).Delete(&GroupSetting{}).Error
}
