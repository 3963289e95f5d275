// Package core provides the business logic of the risk tracker.
//
// This package holds all domain logic independent of any UI, transport or
// storage engine. It is used by the web handlers, the riskctl command and
// tests without modification; storage is reached only through [Store].
//
// # Pipelines
//
// The [Service] exposes four pipelines:
//
//   - Import: reads the organization's xlsx risk template, creates assets and
//     controls by name and risk items by natural key. See [Service.Import].
//   - Audit: [Service.Save] applies field edits and appends one [AuditEntry]
//     per changed field in the same transaction.
//   - Query: [Service.ListRisks] filters, orders and pages the register with
//     a stable ID tiebreaker; [Service.Stats] summarizes review progress.
//   - Export: [Service.Export] writes the template layout back out so that the
//     file re-imports cleanly; [Service.ExportReport] renders a PDF summary.
//
// # Import Flow
//
//  1. Both sheets are resolved and their headers validated before any write
//  2. Rows missing an asset name or threat code are skipped and reported
//  3. Assets, controls and risk items are each created in their own transaction
//
// Existing records are matched and reused, never updated, so importing the
// same workbook twice creates nothing and keeps every edit made through Save.
//
// # Error Handling
//
// Operations return typed errors ([ValidationError], [NotFoundError],
// [ConflictError], [StorageError]). [MapError] converts any error into a
// user-facing message with a support code:
//
//   - VAL001-VAL007: Validation errors (columns, sheets, values)
//   - NF001, CONF001: Missing records and concurrent edits
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - FILE001-FILE003: File errors (size, format)
//   - IMP001-IMP003, RATE001: Import queue, cancellation and rate limits
package core
