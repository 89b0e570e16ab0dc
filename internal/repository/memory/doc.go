// Package memory provides in-memory implementations of the service
// repositories and of the membership directory. Service, worker and HTTP
// tests run against it.
package memory
