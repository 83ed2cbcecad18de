// Package http provides HTTP handlers and middleware for the meeting gateway.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"username","password"}.
//     Response: {"token","expires_at"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the token carried by the Authorization
//     header or session cookie. Returns 204 No Content and clears the cookie.
//   - POST /bbb/create: creates and/or joins a conference room. The body is the
//     `createRequest` payload defined in meeting_handler.go. Responds with
//     {"url"} when the caller can join now, or with the meeting descriptor when
//     the room was scheduled ahead of its window.
//   - GET /bbb/status/{meetingId}: reports participants currently in a room as
//     {"participantCount","attendees":[{"displayName","avatarUrl"}]}, or {} when
//     the room is not running.
//   - GET /metrics: Prometheus exposition. GET /healthz: liveness probe.
//
// The /bbb routes require a session. Request/response DTOs live alongside
// their handlers.
package http
