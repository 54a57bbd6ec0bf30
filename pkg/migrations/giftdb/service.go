// Package giftdb holds all the migrations for the gift database
package giftdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the gift database
var Migrations = migrate.NewMigrations()
