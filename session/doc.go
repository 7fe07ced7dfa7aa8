// Package session provides conversation history persistence behind the
// Store interface. Backends include a process local map (InMemoryStore),
// Redis (RedisStore), SQLite (SQLiteStore) and a cache-over-durable
// combination (HybridStore). SummarizingStore wraps any backend and keeps
// long histories bounded by condensing older messages into summaries.
//
// Higher level packages depend only on the Store interface so the wiring
// layer alone decides which backend to instantiate.
package session
