// Package repository runs predicate conditions against the store: generic
// CRUD, joined member/team projections, pagination, aggregation and bulk
// mutation, always inside the caller's unit of work.
package repository
