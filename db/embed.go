// Package db embeds the PostgreSQL schema applied at startup.
package db

import _ "embed"

// Schema contains the idempotent DDL for accounts, catalog, carts, coupons,
// orders and payments.
//
//go:embed migrations/001_schema.sql
var Schema string
