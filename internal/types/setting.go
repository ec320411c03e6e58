package types

import (
	"encoding/json"
	"time"
)

// UserSetting is an arbitrary JSON value stored per (user, key).
type UserSetting struct {
	UserID       string          `json:"userId"`
	SettingKey   string          `json:"settingKey"`
	SettingValue json.RawMessage `json:"settingValue"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}
