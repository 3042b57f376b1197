// Package services provides the centralized service registry for thinkd.
//
// Registry pattern for accessing all core services (history, sessions,
// thinking, guard, metrics). Use NewRegistry() to create a registry with
// service instances, then accessor methods to retrieve individual services.
package services
