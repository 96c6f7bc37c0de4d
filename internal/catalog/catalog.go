package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("menu item not found")

// Item is the authoritative menu entry. Price is in the minor currency unit.
type Item struct {
	ID         int64  `json:"id" db:"id"`
	MerchantID int64  `json:"merchant_id" db:"store_id"`
	Name       string `json:"name" db:"name"`
	Price      int64  `json:"price" db:"price"`
	Available  bool   `json:"available" db:"available"`
}

// Lookup resolves menu items for a merchant. Items of other merchants are ErrNotFound.
type Lookup interface {
	GetItem(ctx context.Context, merchantID, itemID int64) (*Item, error)
}

type PostgresLookup struct {
	db *sqlx.DB
}

func NewPostgresLookup(db *sqlx.DB) *PostgresLookup {
	return &PostgresLookup{db: db}
}

func (l *PostgresLookup) GetItem(ctx context.Context, merchantID, itemID int64) (*Item, error) {
	query := `
		SELECT id, store_id, name, price, available
		FROM menus
		WHERE id = $1 AND store_id = $2
	`

	var item Item
	err := l.db.GetContext(ctx, &item, query, itemID, merchantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}

	return &item, nil
}
