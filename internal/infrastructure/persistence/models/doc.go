// Package models contains the GORM persistence models of the invoicing tables.
//
// Domain types carry no ORM tags. Each model here owns the column mapping of
// one table and converts to and from its domain type with ToDomain and
// FromDomain; repositories only ever read and write models.
package models
