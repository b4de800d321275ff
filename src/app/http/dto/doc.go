// Package dto contains Data Transfer Objects for HTTP requests and responses.
//
// DTOs are separate from domain entities to:
//   - Control what data is exposed in the API
//   - Handle JSON serialization/deserialization
//   - Keep wire names (camelCase) independent of Go names
//
// Naming convention:
//   - Request types: <Action><Resource>Request (e.g., CreateRoundRequest)
//   - Response types: <Resource>Response (e.g., RoundResponse)
package dto
