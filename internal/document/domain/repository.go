package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	// Get returns nil when the account has no document in namespace.
	Get(ctx context.Context, db *gorm.DB, accountID, namespace string) (*Document, error)
	// Insert fails with a duplicate key error when the document already exists.
	Insert(ctx context.Context, db *gorm.DB, doc *Document) error
	// UpdateIfVersion replaces data and bumps the version only when the stored
	// version still equals expected. It reports whether the write landed.
	UpdateIfVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, expected int64, data datatypes.JSON, updatedAt time.Time) (bool, error)
}
