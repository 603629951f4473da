// Package cli is the interactive notepad client.
//
// App wires the local SQLite store, the vault, the sync engine, the
// SmartSync scheduler and the parse worker, then serves a line-oriented
// REPL. Every edit of the open page is evaluated line by line and handed to
// the scheduler, which saves locally and syncs in the background. An online
// watcher pings the server and switches between online, offline and
// disabled modes.
//
// The REPL is started via App.Run, which blocks until the user exits.
package cli
