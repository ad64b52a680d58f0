// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases for brewkeep's local
// state (the run history) with one set of connection pragmas and a
// versioned schema.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers [Pool.Take]
// a connection, do their work, and [Pool.Put] it back; a connection
// is never shared between goroutines.
//
// Every connection gets:
//
//   - journal_mode=WAL so `brewkeep history` can read while the
//     daemon writes.
//   - synchronous=NORMAL: survives a process crash, not power loss.
//   - busy_timeout=5000.
//   - cache_size=-4096 (4 MB per connection).
//   - temp_store=MEMORY.
//
// Schema changes are listed in [Config.Migrations]. Migration i moves
// the database from PRAGMA user_version i to i+1; [Open] applies the
// missing ones in a single immediate transaction before the pool is
// handed out, so no caller ever sees a half-migrated schema.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:       filepath.Join(stateDir, "history.db"),
//	    Migrations: []string{createRunsTable},
//	    Logger:     logger,
//	})
package sqlitepool
