// Package integration contains the storefront sync bounded context.
// It keeps canonical Product, Order and Listing records consistent with
// external marketplace platforms through durable sync jobs.
//
// Key concepts:
//   - Job / JobItem: queued unit of sync work and its atomic operations
//   - SyncLog: append-only audit trail of sync activity
//   - Connector: port translating canonical operations to one platform's API
//   - WebhookEvent: closed set of inbound platform events
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
