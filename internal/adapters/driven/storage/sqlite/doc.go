// Package sqlite persists backup tasks and history in a single SQLite
// database. Schema changes ship as embedded migrations applied on open.
package sqlite
