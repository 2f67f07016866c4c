package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentAPIKey authenticates an MCP client. The key itself is AES-GCM
// encrypted at rest and never serialized outward; only the prefix is shown
// so operators can tell keys apart.
type AgentAPIKey struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	KeyPrefix    string     `json:"key_prefix"` // first 8 characters, display only
	KeyEncrypted string     `json:"-"`
	Role         string     `json:"role"` // engine role the key acts as
	IsEnabled    bool       `json:"is_enabled"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
