package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/document/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, accountID, namespace string) (*domain.Document, error) {
	var doc domain.Document
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, namespace, data, version, created_at, updated_at
		 FROM account_documents WHERE account_id = ? AND namespace = ?`,
		accountID,
		namespace,
	).Scan(&doc).Error
	if err != nil {
		return nil, err
	}
	if doc.ID == 0 {
		return nil, nil
	}
	return &doc, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO account_documents (id, account_id, namespace, data, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.AccountID,
		doc.Namespace,
		doc.Data,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Error
}

func (r *repo) UpdateIfVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, expected int64, data datatypes.JSON, updatedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE account_documents
		 SET data = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		data,
		updatedAt,
		id,
		expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
