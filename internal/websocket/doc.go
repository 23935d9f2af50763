// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package websocket pushes security alerts and audit statistics to
// connected admin dashboards. A single Hub fans broadcast messages out to
// every registered client; slow consumers are disconnected rather than
// allowed to stall alert delivery.
package websocket
