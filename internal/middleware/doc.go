// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package middleware provides Chi-compatible HTTP middleware: request ID
// propagation, Prometheus instrumentation, security headers, and the audit
// trail middleware that records every API request as an audit event.
package middleware
