package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductType distinguishes the two kinds of listings sellers can offer.
type ProductType string

const (
	ProductTypeWebApp           ProductType = "web_app"
	ProductTypePromptCollection ProductType = "prompt_collection"
)

// ProductStatus is the publication state of a listing.
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "DRAFT"
	ProductStatusPublished ProductStatus = "PUBLISHED"
)

// Product is a marketplace listing: either a web app or a collection of
// prompts. Price is in whole currency units (dollars); conversion to the
// gateway's minor units happens at checkout time.
type Product struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Price       int           `json:"price" db:"price"`
	Features    []string      `json:"features" db:"features"`
	Type        ProductType   `json:"type" db:"type"`
	Status      ProductStatus `json:"status" db:"status"`
	DemoURL     *string       `json:"demo_url,omitempty" db:"demo_url"`
	PromptCount int           `json:"prompt_count" db:"prompt_count"`
	ImageURL    *string       `json:"image_url,omitempty" db:"image_url"`
	Prompts     []Prompt      `json:"prompts,omitempty"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// Prompt is a single input/output pair belonging to a prompt-collection
// product.
type Prompt struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Input     string    `json:"input" db:"input"`
	Output    string    `json:"output" db:"output"`
}
