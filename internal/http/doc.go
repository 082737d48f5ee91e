// Package http exposes the gate workflow over HTTP.
//
// The router serves the following endpoints:
//   - POST /gate/evaluations: evaluates one gate entry attempt. Body:
//     {"tenant_id","timestamp"} with an RFC 3339 timestamp. Response: the
//     `evaluationResponse` payload defined in gate_handler.go.
//   - POST /tenants/{id}/curfew-snapshot/invalidate: drops the cached curfew
//     snapshot for the tenant so the next evaluation reloads it. Returns 204.
//   - GET /tenants/{id}/curfew-windows?from=&to=: restricted intervals in the
//     range (default: the coming week), as `windowsResponse` in gate_handler.go.
//   - GET /healthz: liveness and storage reachability.
//   - GET /metrics: Prometheus exposition.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
