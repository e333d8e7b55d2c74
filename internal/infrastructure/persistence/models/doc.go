// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel shared by all tables
// - json.go: JSON column types (metadata, string lists, order lines)
// - sync.go: jobs, job_items and sync_logs
// - channel.go: channel_accounts
// - records.go: canonical products, orders and listings
package models
