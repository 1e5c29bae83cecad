// Package pgwire is a low-level PostgreSQL client that exposes the frontend/
// backend protocol nearly directly.
//
// Establishing a Connection
//
// Use Connect to establish a connection. It accepts a connection string in
// URL or DSN format and will read the environment for libpq style environment
// variables.
//
// Executing a Query
//
// Query and Exec run SQL through the simple query protocol; a query string
// may contain multiple statements and one result is collected per statement.
// Prepare and ExecPrepared use the extended protocol with binary parameters
// and results. CopyFrom streams bulk data with COPY FROM STDIN.
//
// Decoding values is driven by a codec.Map of per-OID codecs. Derive a map
// and register codecs on it to override decoding for a single connection
// without affecting any other.
package pgwire
