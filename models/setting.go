package models

import (
	"context"
	"time"

	"github.com/Evan-ql/shuadan/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const SettingKeyChuangzhiToken = "chuangzhi_token"

type Setting struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Key       string    `gorm:"column:setting_key;uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func settingCacheKey(key string) string {
	return "Setting:" + key
}

// GetSetting returns the stored value for key, or "" when the key was
// never set. Redis is consulted first when available.
func GetSetting(ctx context.Context, key string) (string, error) {
	var cached string
	if found, err := config.GetRedisObject(settingCacheKey(key), &cached); err == nil && found {
		return cached, nil
	}

	db := config.GetDB()
	var setting Setting
	err := db.WithContext(ctx).First(&setting, "setting_key = ?", key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}

	_ = config.SetRedisObject(settingCacheKey(key), setting.Value, 10*time.Minute)
	return setting.Value, nil
}

func SetSetting(ctx context.Context, key string, value string) error {
	db := config.GetDB()

	setting := Setting{Key: key, Value: value}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value"}),
	}).Create(&setting).Error
	if err != nil {
		return err
	}

	return config.RemoveRedisKey(settingCacheKey(key))
}
