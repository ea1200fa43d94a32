// Package errors provides structured, actionable error messages for vserve.
//
// Every failure that can stop the launcher carries a unique code that maps to
// a short message, a longer explanation and a documentation link. Errors can
// be annotated with a detail line, a suggestion and a process exit code:
//
//	err := errors.New("E110").
//	    WithDetail("This error happened when loading the server file at public/build/server.so").
//	    Wrap(cause)
//
//	fmt.Fprint(os.Stderr, err.Format())
//	// Output:
//	// ERROR E110: Server bundle failed to load
//	//
//	//   This error happened when loading the server file at public/build/server.so
//	//
//	//   Cause: plugin.Open("public/build/server.so"): realpath failed
//	//
//	//   Learn more: https://vango.dev/docs/vserve/errors/E110
//
// # Error Categories
//
//   - manifest: the build manifest is missing or malformed
//   - bundle: the server bundle could not be loaded
//   - config: invalid flags, environment or config file
//   - network: the listening socket could not be bound
//   - render: a page failed to render (request-scoped)
//   - cli: subprocess and command failures
package errors
