// Package all wires the built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL bootstrappers with the storage package.
//
// Importing this package makes the following storage kinds available:
//
//   - "postgres" (olistetl/internal/storage/postgres)
//   - "sqlite"   (olistetl/internal/storage/sqlite)
//
// A binary that should support only one backend can blank-import that backend
// package directly instead of this one.
package all

import (
	_ "olistetl/internal/storage/postgres"
	_ "olistetl/internal/storage/sqlite"
)
