package database

// Schema is the idempotent database schema for the marketplace.
// Executed at startup via RunMigrations; every statement is safe to
// run against an existing database.
//
// Constraints worth noting:
//   - Emails are unique case-insensitively (unique index on lower(email)).
//     OAuth profiles may carry no email at all; empty emails are exempt
//     from the index so such accounts can coexist.
//   - Every account must be able to authenticate somehow: either a
//     password hash (credential signup) or a google_id (OAuth).
//   - Prompts are owned by their product and removed with it.
const Schema = `
CREATE EXTENSION IF NOT EXISTS "pgcrypto";

CREATE TABLE IF NOT EXISTS users (
    id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name                VARCHAR(255) NOT NULL,
    email               VARCHAR(255) NOT NULL,
    password_hash       VARCHAR(255),
    google_id           VARCHAR(255),
    role                VARCHAR(20) NOT NULL DEFAULT 'USER',
    bio                 TEXT,
    avatar_url          TEXT,
    email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
    push_notifications  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_login          TIMESTAMPTZ,
    CONSTRAINT users_auth_method CHECK (password_hash IS NOT NULL OR google_id IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email)) WHERE email <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_google_id ON users (google_id) WHERE google_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS products (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title        VARCHAR(255) NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    price        INTEGER NOT NULL DEFAULT 0,
    features     TEXT[] NOT NULL DEFAULT '{}',
    type         VARCHAR(30) NOT NULL,
    status       VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
    demo_url     TEXT,
    prompt_count INTEGER NOT NULL DEFAULT 0,
    image_url    TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_products_user_id ON products (user_id);
CREATE INDEX IF NOT EXISTS idx_products_status_created ON products (status, created_at DESC);

CREATE TABLE IF NOT EXISTS prompts (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
    input      TEXT NOT NULL,
    output     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_prompts_product_id ON prompts (product_id);
`
