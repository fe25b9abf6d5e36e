package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/promptmarket/api/internal/models"
)

// productColumns is the canonical column list for scanning products.
const productColumns = `id, user_id, title, description, price, features, type, status,
	demo_url, prompt_count, image_url, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var product models.Product
	err := row.Scan(
		&product.ID,
		&product.UserID,
		&product.Title,
		&product.Description,
		&product.Price,
		pq.Array(&product.Features),
		&product.Type,
		&product.Status,
		&product.DemoURL,
		&product.PromptCount,
		&product.ImageURL,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListPublishedProducts returns a page of published products ordered by
// newest first. Offset/limit come from the pagination parameters of the
// listing endpoint.
func (p *PostgresDB) ListPublishedProducts(ctx context.Context, offset, limit int) ([]models.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE status = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, productColumns)

	rows, err := p.db.QueryContext(ctx, query, models.ProductStatusPublished, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]models.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// CountPublishedProducts returns the total number of published products,
// used for pagination metadata.
func (p *PostgresDB) CountPublishedProducts(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE status = $1`,
		models.ProductStatusPublished,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// ListProductsByUser returns all products owned by a user, any status,
// newest first. Powers the seller's "my products" view.
func (p *PostgresDB) ListProductsByUser(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, productColumns)

	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, nil
}

// GetProductByID retrieves a single product with its prompts.
// Returns ErrNotFound if no such product exists.
func (p *PostgresDB) GetProductByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(p.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	prompts, err := p.listPrompts(ctx, p.db, productID)
	if err != nil {
		return nil, err
	}
	product.Prompts = prompts

	return product, nil
}

// CreateProductParams carries the fields of a new listing.
type CreateProductParams struct {
	UserID      uuid.UUID
	Title       string
	Description string
	Price       int
	Features    []string
	Type        models.ProductType
	Status      models.ProductStatus
	DemoURL     *string
	ImageURL    *string
	Prompts     []models.Prompt
}

// CreateProduct inserts a product and its prompts atomically. The
// prompt_count column is derived from the prompt slice so listings can
// show it without joining the prompts table.
func (p *PostgresDB) CreateProduct(ctx context.Context, params CreateProductParams) (*models.Product, error) {
	var product *models.Product

	err := p.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
			INSERT INTO products (user_id, title, description, price, features, type, status, demo_url, prompt_count, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING %s
		`, productColumns)

		var err error
		product, err = scanProduct(tx.QueryRowContext(ctx, query,
			params.UserID,
			params.Title,
			params.Description,
			params.Price,
			pq.Array(params.Features),
			params.Type,
			params.Status,
			params.DemoURL,
			len(params.Prompts),
			params.ImageURL,
		))
		if err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}

		for _, prompt := range params.Prompts {
			var inserted models.Prompt
			err := tx.QueryRowContext(ctx, `
				INSERT INTO prompts (product_id, input, output)
				VALUES ($1, $2, $3)
				RETURNING id, product_id, input, output
			`, product.ID, prompt.Input, prompt.Output).Scan(
				&inserted.ID,
				&inserted.ProductID,
				&inserted.Input,
				&inserted.Output,
			)
			if err != nil {
				return fmt.Errorf("failed to create prompt: %w", err)
			}
			product.Prompts = append(product.Prompts, inserted)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("product_id", product.ID.String()).
		Str("user_id", params.UserID.String()).
		Str("type", string(params.Type)).
		Msg("Product created")

	return product, nil
}

// listPrompts loads the prompts belonging to a product.
func (p *PostgresDB) listPrompts(ctx context.Context, q Querier, productID uuid.UUID) ([]models.Prompt, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, input, output
		FROM prompts
		WHERE product_id = $1
		ORDER BY created_at
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var prompt models.Prompt
		if err := rows.Scan(&prompt.ID, &prompt.ProductID, &prompt.Input, &prompt.Output); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prompts: %w", err)
	}

	return prompts, nil
}
