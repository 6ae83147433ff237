package lockmgr

import (
	"github.com/google/uuid"
)

// generateOwnerID creates a new unique owner ID (a random UUID)
func generateOwnerID() string {
	return uuid.NewString()
}
