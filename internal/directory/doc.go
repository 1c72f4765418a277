// Package directory persists the tracker-username to chat-account registry,
// direct-conversation handles and the delivery audit trail, and exposes the
// capability implementations the delivery pipeline consumes.
package directory
