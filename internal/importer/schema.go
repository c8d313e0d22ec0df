package importer

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		style VARCHAR(20),
		sku VARCHAR(32) UNIQUE NOT NULL,
		product_title VARCHAR(255),
		product_description TEXT,
		available_sizes VARCHAR(128),
		suggested_price DECIMAL(10, 2),
		category_name VARCHAR(100),
		subcategory_name VARCHAR(100),
		color_name VARCHAR(50),
		size VARCHAR(16),
		stock INTEGER,
		piece_weight DECIMAL(8, 4),
		warehouse VARCHAR(64),
		product_status VARCHAR(32),
		msrp DECIMAL(10, 2),
		map_pricing DECIMAL(10, 2),
		front_model_image_url VARCHAR(500),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_style ON products(style)`,
	`CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_name)`,
	`CREATE INDEX IF NOT EXISTS idx_products_subcategory ON products(subcategory_name)`,
	`CREATE INDEX IF NOT EXISTS idx_products_color ON products(color_name)`,
	`CREATE INDEX IF NOT EXISTS idx_products_size ON products(size)`,
	`CREATE INDEX IF NOT EXISTS idx_products_warehouse ON products(warehouse)`,
	`CREATE INDEX IF NOT EXISTS idx_products_status ON products(product_status)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor VARCHAR(64),
		action VARCHAR(64) NOT NULL,
		entity VARCHAR(64) NOT NULL,
		entity_id VARCHAR(64) NOT NULL,
		meta JSONB,
		occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity, entity_id)`,
	`CREATE OR REPLACE FUNCTION update_updated_at_column()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = CURRENT_TIMESTAMP;
		RETURN NEW;
	END;
	$$ language plpgsql`,
	`DROP TRIGGER IF EXISTS update_products_updated_at ON products`,
	`CREATE TRIGGER update_products_updated_at
		BEFORE UPDATE ON products
		FOR EACH ROW
		EXECUTE FUNCTION update_updated_at_column()`,
}

// EnsureSchema creates the products and audit_logs tables, the lookup
// indexes and the updated_at trigger when they are missing.
func (imp *Importer) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := imp.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
