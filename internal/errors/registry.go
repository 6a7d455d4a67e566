package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E149)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check that discuss.toml is valid TOML",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Invalid API base URL",
		Suggestion: "Set api.base_url to an absolute http(s) URL",
	},
	"E122": {
		Category:   CategoryConfig,
		Message:    "Invalid port",
		Suggestion: "Port must be between 0 and 65535",
	},
	"E123": {
		Category:   CategoryConfig,
		Message:    "Invalid duration",
		Suggestion: `Durations use Go syntax, e.g. "10s" or "1m30s"`,
	},
	"E124": {
		Category:   CategoryConfig,
		Message:    "Invalid log level",
		Suggestion: "Use one of debug, info, warn, error",
	},
	"E125": {
		Category:   CategoryConfig,
		Message:    "Invalid metrics namespace",
		Suggestion: "Use letters, digits and underscores, starting with a letter",
	},
	"E141": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Run 'discuss init' or pass --config",
	},

	// ============================================
	// Remote Errors (E300-E319)
	// ============================================

	"E300": {
		Category:   CategoryRemote,
		Message:    "Request failed",
		Suggestion: "Check that the API server is reachable",
	},
	"E301": {
		Category:   CategoryRemote,
		Message:    "Remote delete failed",
		Suggestion: "The cached comment list was restored; retry the delete.",
	},
	"E302": {
		Category: CategoryRemote,
		Message:  "Unexpected response status",
	},
	"E303": {
		Category: CategoryRemote,
		Message:  "Malformed response body",
	},

	// ============================================
	// Cache Errors (E320-E339)
	// ============================================

	"E320": {
		Category:   CategoryCache,
		Message:    "Cached data has unexpected type",
		Suggestion: "Only one data type may be stored per query key",
	},
	"E321": {
		Category: CategoryCache,
		Message:  "Query cancelled",
	},

	// ============================================
	// Validation Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryValidation,
		Message:  "Missing required value",
	},
	"E401": {
		Category: CategoryValidation,
		Message:  "Malformed request body",
	},
	"E404": {
		Category: CategoryValidation,
		Message:  "Not found",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
