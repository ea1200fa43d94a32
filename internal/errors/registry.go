package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
	Exit     int
}

// Exit codes follow sysexits(3) where one fits.
const (
	exitDataErr     = 65
	exitNoInput     = 66
	exitUnavailable = 69
	exitSoftware    = 70
	exitConfig      = 78
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Manifest Errors (E100-E109)
	// ============================================

	"E100": {
		Category: CategoryManifest,
		Message:  "Build manifest not found",
		Detail:   "No build manifest exists in the public directory. The build step has not been run.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E100",
		Exit:     exitNoInput,
	},
	"E101": {
		Category: CategoryManifest,
		Message:  "Build manifest is malformed",
		Detail:   "The build manifest could not be decoded or is missing required fields.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E101",
		Exit:     exitDataErr,
	},

	// ============================================
	// Bundle Errors (E110-E119)
	// ============================================

	"E110": {
		Category: CategoryBundle,
		Message:  "Server bundle failed to load",
		Detail:   "The server bundle named in the build manifest could not be loaded or failed during initialization.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E110",
		Exit:     exitSoftware,
	},

	// ============================================
	// Config Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file, flags or environment could not be parsed.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E120",
		Exit:     exitConfig,
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Unknown reporter",
		Detail:   "The requested step reporter does not exist.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E121",
		Exit:     exitConfig,
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured port number is outside the range 0-65535.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E122",
		Exit:     exitConfig,
	},

	// ============================================
	// Network Errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryNetwork,
		Message:  "Could not bind listening socket",
		Detail:   "The host and port could not be bound. The port may be in use or require elevated permissions.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E130",
		Exit:     exitUnavailable,
	},

	// ============================================
	// Render Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryRender,
		Message:  "Page render failed",
		Detail:   "The server bundle returned an error or panicked while rendering a page.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E140",
	},

	// ============================================
	// CLI Errors (E150-E159)
	// ============================================

	"E150": {
		Category: CategoryCLI,
		Message:  "Test runner failed",
		Detail:   "The test runner could not be started or exited with a failure.",
		DocURL:   "https://vango.dev/docs/vserve/errors/E150",
	},
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
