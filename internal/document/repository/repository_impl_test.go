package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/document/domain"
	"github.com/smallbiznis/creditgate/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Document{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newDocument(t *testing.T, node *snowflake.Node, accountID string) *domain.Document {
	t.Helper()
	now := time.Now().UTC()
	return &domain.Document{
		ID:        node.Generate(),
		AccountID: accountID,
		Namespace: "credits",
		Data:      datatypes.JSON(`{"balance":10,"auto_top_up":false}`),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	conn := setupTestDB(t)
	doc, err := Provide().Get(context.Background(), conn, "acct_missing", "credits")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestInsertRejectsDuplicateNamespace(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)

	if err := repo.Insert(ctx, conn, newDocument(t, node, "acct_1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, conn, newDocument(t, node, "acct_1")); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
}

func TestUpdateIfVersion(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)

	doc := newDocument(t, node, "acct_1")
	if err := repo.Insert(ctx, conn, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ok, err := repo.UpdateIfVersion(ctx, conn, doc.ID, 1, datatypes.JSON(`{"balance":4,"auto_top_up":false}`), time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("expected first update to land, ok=%v err=%v", ok, err)
	}

	ok, err = repo.UpdateIfVersion(ctx, conn, doc.ID, 1, datatypes.JSON(`{"balance":0,"auto_top_up":false}`), time.Now().UTC())
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatalf("expected stale version update to be rejected")
	}

	stored, err := repo.Get(ctx, conn, "acct_1", "credits")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Version != 2 {
		t.Fatalf("expected version 2, got %d", stored.Version)
	}
	if string(stored.Data) != `{"balance":4,"auto_top_up":false}` {
		t.Fatalf("unexpected data %s", stored.Data)
	}
}
