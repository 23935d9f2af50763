// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package audit implements the tamper-evident audit and security-event
// pipeline.
//
// Every event accepted by the Service is validated, enriched with
// identifiers and data-sensitivity classification, linked into a
// per-instance SHA-256 hash chain, and scored for risk before being
// buffered. Buffers flush to DuckDB on size, interval, or critical
// severity; events that match a threat-detection rule additionally
// produce an immediately-persisted critical record and fan out alerts
// to registered notifiers. Store failures fall back to a local
// JSON-lines file so that no accepted event is silently lost.
//
// The package also provides retention management (archive and purge by
// policy), compliance report generation (HIPAA, GDPR, SOC2), and a
// parameterized query builder for event retrieval.
package audit
