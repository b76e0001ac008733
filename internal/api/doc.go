// Package api implements the HTTP management API and WebSocket event stream
// for the actuator core.
//
// This package provides:
//   - REST endpoints for devices, commands, recommendation batches,
//     strategy, status, history and the emergency stop
//   - WebSocket hub that streams controller events to operator consoles
//   - JWT authentication with operator and viewer roles
//   - Middleware that gives every request an id and a logger carrying it
//   - Prometheus scrape endpoint and a runtime log level switch
//
// # Architecture
//
// The API is a thin layer over control.Controller. Every mutating endpoint
// maps to one controller operation and controller rejections are returned
// as 409/422 with the rejection reason in the message.
//
// # Security
//
// Every route except health and metrics requires a bearer token signed with
// the configured secret. Viewers may read; mutations need the operator role.
// WebSocket connections use single-use tickets so tokens never appear in URLs.
package api
