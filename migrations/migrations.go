package migrations

import _ "embed"

// Init creates the trade archive schema. It is safe to apply repeatedly.
//
//go:embed 001_init.sql
var Init string
