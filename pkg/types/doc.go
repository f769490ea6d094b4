// Package types defines the entity types, query parameters, event payloads,
// configuration, and standard error types shared across the schemalog
// service. It has no dependencies on the storage or transport layers so that
// every other package can import it.
package types

// Version is the released version of the schemalog module.
const Version = "0.1.0"
