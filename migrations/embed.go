// Package migrations embeds all SQL migration files so the binary is
// self-contained and runnable from any working directory (greenhouse edge
// boxes launch it from systemd with no fixed cwd).
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
