// Package launch boots the production server.
//
// A Server moves through these states:
//
//	Preparing ──► Starting ──► Running ──► Stopped
//	    │             │
//	    └──► Failed ◄─┘
//
// Preparing reads the build manifest and loads the server bundle. Starting
// binds the listening socket. Running serves requests until the context is
// cancelled, then drains in-flight requests and stops. Startup runs once and
// is never retried.
package launch
