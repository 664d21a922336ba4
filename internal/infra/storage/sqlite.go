package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"tradeboard/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists chat sessions and symbol metadata in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance. An empty path resolves
// to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		resolved, err := getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
		dbPath = resolved
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SymbolMeta{}, &domain.ChatMessage{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "Tradeboard", "data", "tradeboard.db"), nil
}

// ======================================================================================
// Symbol metadata
// ======================================================================================

// UpsertSymbolMeta creates or updates per-symbol metadata.
func (s *Storage) UpsertSymbolMeta(meta *domain.SymbolMeta) error {
	return s.db.Save(meta).Error
}

// GetSymbolMeta retrieves metadata by base currency.
func (s *Storage) GetSymbolMeta(base string) (*domain.SymbolMeta, error) {
	var meta domain.SymbolMeta
	err := s.db.First(&meta, "base = ?", base).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &meta, err
}

// GetAllSymbolMeta retrieves all persisted symbol metadata.
func (s *Storage) GetAllSymbolMeta() ([]domain.SymbolMeta, error) {
	var metas []domain.SymbolMeta
	err := s.db.Find(&metas).Error
	return metas, err
}

// ToggleFavorite flips the favorite flag for a base currency, creating the
// row if needed, and returns the new state.
func (s *Storage) ToggleFavorite(base string) (bool, error) {
	var meta domain.SymbolMeta
	err := s.db.First(&meta, "base = ?", base).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		meta = domain.SymbolMeta{Base: base, IsFavorite: true}
		return true, s.db.Save(&meta).Error
	}
	if err != nil {
		return false, err
	}

	meta.IsFavorite = !meta.IsFavorite
	return meta.IsFavorite, s.db.Save(&meta).Error
}

// ======================================================================================
// Chat sessions
// ======================================================================================

// AppendChatTurns stores a batch of turns for a session.
func (s *Storage) AppendChatTurns(sessionID string, turns []domain.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]domain.ChatMessage, len(turns))
	for i, t := range turns {
		msgs[i] = domain.ChatMessage{
			SessionID: sessionID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.Timestamp,
		}
	}
	return s.db.Create(&msgs).Error
}

// ChatHistory returns the last limit turns of a session in chronological
// order.
func (s *Storage) ChatHistory(sessionID string, limit int) ([]domain.ChatTurn, error) {
	var msgs []domain.ChatMessage
	err := s.db.Where("session_id = ?", sessionID).
		Order("id DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	turns := make([]domain.ChatTurn, len(msgs))
	for i, m := range msgs {
		// reverse back into chronological order
		turns[len(msgs)-1-i] = domain.ChatTurn{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		}
	}
	return turns, nil
}

// DeleteChatSession removes every turn of a session.
func (s *Storage) DeleteChatSession(sessionID string) error {
	return s.db.Where("session_id = ?", sessionID).Delete(&domain.ChatMessage{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
