// Package store provides a DynamoDB data access layer for document pointers.
//
// A document pointer records where a clinical document about a patient can be
// fetched from. Pointers are written by producers (custodians) and searched by
// consumers, always scoped to one patient's NHS number.
//
// # Key Features
//
//   - Conditional create, update and delete with precondition errors
//   - Atomic supersede: insert a replacement and delete its predecessor in one transaction
//   - Paginated search by subject with document type and custodian filters
//   - Opaque, URL-safe continuation cursors
//   - A per-fetch result ceiling that fails closed instead of truncating
//
// # Table Layout
//
// Every pointer is one item. The primary key and the subject index key are
// derived from the record:
//
//	pk   = "D#<id>"           sk   = "D#<id>"
//	pk_1 = "P#<nhs_number>"   sk_1 = "D#<id>"    (index idx_gsi_1)
//
// Record fields are stored as top-level attributes alongside the keys;
// [Record.Extra] entries are stored the same way.
//
// # Configuration
//
// Use [DefaultConfig] and set the environment prefix of the deployment:
//
//	cfg := store.DefaultConfig()
//	cfg.EnvironmentPrefix = "nrlf-dev-"
//	s := store.New(dynamodbClient, cfg)
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrConflict] - id already exists, or a supersede precondition failed
//   - [ErrNotFound] - the pointer does not exist
//   - [ErrInvalidFilter] - missing subject, too many type codes or a bad cursor
//   - [ErrTooManyResults] - a single fetch exceeded the result ceiling
//   - [ErrCodec] - a value cannot be converted to or from its stored form
//   - [ErrStorageFault] - matches any [*Fault] raised by the engine
package store
