// Package storage provides the persistence backends that persistent stores
// read from and write to.
//
// A backend is a flat key/bytes table. Stores address backends through an
// Area rather than directly, mirroring the two storage areas a browser
// exposes:
//
//	Durable  survives restarts (sqlite, S3, files)
//	Session  lives as long as the application session (memory)
//
// Wiring areas to backends happens once, at application start:
//
//	db, err := storage.OpenSQLite("state.db")
//	areas := storage.NewAreas(db, storage.NewMemoryBackend())
//	reg := registry.New(registry.WithStorage(areas))
//
// # Backends
//
//	storage.NewMemoryBackend()          // default, process lifetime
//	storage.NewSQLBackend(db)           // any database/sql driver
//	storage.OpenSQLite(path)            // pure-Go sqlite (modernc.org/sqlite)
//	storage.NewFileBackend(dir)         // one file per key, change watching
//	storage.NewS3Backend(client, bucket)
//
// Load returns (nil, nil) for a missing key. Backends that can report
// external writes implement Watcher; persistent stores created with
// store.WithSync use it to stay in step with other processes.
package storage
