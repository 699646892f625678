package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Session and storage (S100-S199)
	// ============================================

	"S101": {
		Category:   CategorySession,
		Message:    "Stored session could not be restored",
		Detail:     "The durable storage holds a session entry that cannot be decoded. The stored user is not valid JSON or not an object.",
		Suggestion: "Run `storefront session logout` to clear the stored entries, then sign in again.",
	},
	"S102": {
		Category:   CategorySession,
		Message:    "Session was not saved",
		Detail:     "The session changed in memory but writing it to durable storage failed. It will be lost when the process exits.",
		Suggestion: "Check that the configured storage is reachable and writable.",
	},
	"S103": {
		Category:   CategorySession,
		Message:    "Incomplete session",
		Detail:     "A session needs both a token and a user. Setting only one of them is rejected.",
		Suggestion: "Pass both --token and --user-json.",
	},
	"S104": {
		Category: CategoryStorage,
		Message:  "Session storage is closed",
		Detail:   "The storage backend was closed before the operation ran.",
	},
	"S105": {
		Category:   CategoryStorage,
		Message:    "Session storage unavailable",
		Detail:     "The configured storage backend could not be opened.",
		Suggestion: "Check storage.backend and its settings in storefront.json, or set STOREFRONT_STORAGE_BACKEND=memory.",
	},
	"S106": {
		Category:   CategorySession,
		Message:    "Invalid user profile",
		Detail:     "A user field is not valid UTF-8 and could not be stored and restored unchanged.",
		Suggestion: "Check the encoding of the --user-json input.",
	},

	// ============================================
	// Catalog (S200-S299)
	// ============================================

	"S201": {
		Category:   CategoryCatalog,
		Message:    "Sign-in failed",
		Detail:     "The catalog rejected the email or password.",
		Suggestion: "Check the credentials and try again.",
	},
	"S202": {
		Category: CategoryCatalog,
		Message:  "Catalog request failed",
		Detail:   "The catalog answered with an error status.",
	},
	"S203": {
		Category:   CategoryCatalog,
		Message:    "Catalog unreachable",
		Detail:     "No answer was received from the catalog API.",
		Suggestion: "Check catalog.baseURL and that the catalog server is running.",
	},

	// ============================================
	// Upload (S300-S399)
	// ============================================

	"S301": {
		Category:   CategoryUpload,
		Message:    "Upload not authorized",
		Detail:     "The upload request carried no valid bearer token.",
		Suggestion: "Sign in first so the session token is sent with the upload.",
	},
	"S302": {
		Category: CategoryUpload,
		Message:  "File too large",
		Detail:   "The file exceeds the route's size limit.",
	},
	"S303": {
		Category: CategoryUpload,
		Message:  "File type not allowed",
		Detail:   "The detected content type is not accepted by this route.",
	},
	"S304": {
		Category: CategoryUpload,
		Message:  "Upload not found",
		Detail:   "No pending upload has this ID. It may have been claimed or expired.",
	},
	"S305": {
		Category:   CategoryUpload,
		Message:    "Upload service failed",
		Detail:     "The upload service stopped with an error.",
		Suggestion: "Check that upload.addr is free and the upload directory or bucket is reachable.",
	},

	// ============================================
	// Configuration (S400-S499)
	// ============================================

	"S401": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "storefront.json is not valid JSON.",
		Suggestion: "Fix the syntax error at the position shown.",
	},
	"S402": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is missing or out of range.",
	},
	"S403": {
		Category: CategoryConfig,
		Message:  "Invalid environment",
		Detail:   "An environment variable could not be parsed.",
	},

	// ============================================
	// CLI (S500-S599)
	// ============================================

	"S501": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command argument or flag value is not valid.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
