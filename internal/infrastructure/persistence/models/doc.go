// Package models contains the GORM models behind the settlement tables:
// parties, documents and allocations. Domain entities stay free of ORM
// tags; each model here carries the table mapping plus ToDomain/FromDomain
// converters used by the repositories.
package models
