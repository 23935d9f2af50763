// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package config loads and validates service configuration from layered
// sources using koanf: built-in defaults, an optional YAML file, and
// environment variables, in ascending precedence.
package config
