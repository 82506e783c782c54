/*
Package ports defines the driven and driving ports (interfaces) of the flowrun engine.

These interfaces decouple the interpreter from external implementations, allowing
the engine to work with various dispatchers, flow sources and storage backends.

# Key Interfaces

  - ActionDispatcher: Performs the side effect of each node type (simulated by default).
  - FlowLoader: Loads Flow definitions (e.g., from files, Loam or memory).
  - SessionStore: Persists and loads session snapshots.
  - DistributedLocker: Provides distributed locking for concurrent session access.
  - SessionService: What transports (HTTP, MCP) drive; implemented by session.Manager.
*/
package ports
