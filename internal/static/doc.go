// Package static serves the public directory in two caching tiers.
//
// The build tier serves content-addressed files from <public>/build under
// /build/. Their names embed a hash of their contents, so they are cached for
// a year, marked immutable, and carry no validators. A miss in the build tier
// is a terminal 404.
//
// The public tier serves every other file under <public> with a weak ETag and
// Last-Modified so clients revalidate. A miss falls through to the next stage.
package static
