package domain

import (
	"time"
)

// SymbolMeta is per-symbol user metadata persisted across runs: favorite
// state and the cached icon location. Keyed by base currency, not by pair,
// since icons and favorites apply to the asset itself.
type SymbolMeta struct {
	Base         string    `gorm:"primaryKey" json:"base"`
	Name         string    `json:"name"`
	IconPath     string    `json:"icon_path"`
	IsFavorite   bool      `json:"is_favorite" gorm:"index"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatMessage is one persisted chat turn, ordered within a session by
// insertion.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index" json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
