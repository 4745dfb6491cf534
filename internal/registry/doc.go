// Package registry provides the central "glue" for the module system.
//
// Modules contribute three kinds of bindings that routines can reach:
// synchronous functions callable from any expression, asynchronous functions
// reached through "await name(...)" and scheduled on the task executor, and
// global values. Every registry starts with a standard function set from
// go-cty's stdlib (format, join, upper, jsonencode, ...).
//
// During application startup the registry is populated and then validated, so
// that naming conflicts surface before any handler runs.
package registry
