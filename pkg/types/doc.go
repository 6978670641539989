// Package types defines the Store interface, the storage metadata records
// (ClassMapping, ClassAttribute), the runtime entity types bound to them and
// the standard errors of the timelink storage layer.
package types
