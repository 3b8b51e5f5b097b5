package device

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
	"github.com/google/uuid"
)

const installIDKey = "install_id"

// IDManager owns the per-install UUID, persisted in the device_info table and
// cached in memory after first use.
type IDManager struct {
	db *storage.DB

	mu        sync.Mutex
	installID string
}

// NewIDManager returns an IDManager over db.
func NewIDManager(db *storage.DB) *IDManager {
	return &IDManager{db: db}
}

// InstallID returns the persisted install id, creating it on first call.
func (m *IDManager) InstallID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.installID != "" {
		return m.installID, nil
	}

	id, err := m.load()
	if err != nil {
		return "", err
	}
	if id != "" {
		m.installID = id
		return id, nil
	}

	// A failed write still yields an id that is stable for this process.
	m.installID = uuid.NewString()
	_ = m.save(m.installID)
	return m.installID, nil
}

// Regenerate replaces the install id. Used for a privacy reset.
func (m *IDManager) Regenerate() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	if err := m.save(id); err != nil {
		return "", err
	}
	m.installID = id
	return id, nil
}

func (m *IDManager) load() (string, error) {
	var value string
	err := m.db.QueryRow("SELECT value FROM device_info WHERE key = ?", installIDKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load install id: %w", err)
	}
	return value, nil
}

func (m *IDManager) save(id string) error {
	_, err := m.db.Exec("INSERT OR REPLACE INTO device_info (key, value) VALUES (?, ?)", installIDKey, id)
	if err != nil {
		return fmt.Errorf("save install id: %w", err)
	}
	return nil
}
