// Package apitoolkit provides a declarative projection layer between stored
// records and API responses. Resource types declare how each output field is
// produced; the toolkit compiles those declarations once, resolves only the
// fields a client requested into ordered output maps, computes the minimal
// set of relation paths to preload, and interprets client filter expressions
// into constraints against a queryable store.
//
// The root package holds the collaborator abstractions shared by every
// subpackage: the record and request-context interfaces the toolkit consumes,
// the query-builder abstraction it emits constraints into, and the callable
// types (guards, transformers, accessors, computes, constraints) that field
// declarations are built from. See the schema, resource, preload and query
// packages for the engine itself.
package apitoolkit
