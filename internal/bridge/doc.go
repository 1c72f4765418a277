// Package bridge implements the payload-to-notification pipeline:
// parsing tracker webhook envelopes, extracting and deduplicating
// participants, resolving them to chat-platform accounts, deciding
// per event type whether and what to send, and driving per-recipient
// delivery through injected capabilities.
//
// The pipeline is stateless: every entity lives within a single
// Process() invocation and nothing (including resolved identities)
// is cached across events.
package bridge
