// Package app composes the platform services into a running application.
//
// The layout follows a composition-over-logic split:
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	├── storage/            # Store interfaces plus memory and postgres backends
//	├── services/           # Business logic, one package per domain
//	├── httpapi/            # REST handlers and routing
//	├── system/             # Service lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// Services hold the business rules and depend only on the storage
// interfaces; application.go picks concrete stores and external clients
// (Ethereum node, KYC vendor, object storage, redis) and registers the
// background runners with the system manager.
package app
