package errors

import "sort"

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
	// Runtime Errors (R001-R099)
	// ============================================

	"R001": {
		Category:   CategoryRuntime,
		Message:    "Re-run limit exceeded",
		Detail:     "A watcher kept invalidating itself while it was evaluating. Each write it made to its own dependencies scheduled another run.",
		Suggestion: "Guard the write so it stops once the value settles, or raise engine.maxReruns",
	},
	"R002": {
		Category:   CategoryRuntime,
		Message:    "Computed value depends on itself",
		Detail:     "A computed value was read while it was already being evaluated.",
		Suggestion: "Break the cycle between the computed values involved",
	},
	"R003": {
		Category: CategoryRuntime,
		Message:  "Engine not at rest",
		Detail:   "A subscriber is still on the active stack or a tracking suspension was not balanced.",
	},
	"R004": {
		Category: CategoryRuntime,
		Message:  "Watch target is not a container",
		Detail:   "A path watch needs an object to resolve the path against.",
	},
	"R005": {
		Category: CategoryRuntime,
		Message:  "Watch callback failed",
		Detail:   "A user callback returned an error or panicked. Other watchers were still notified.",
	},

	// ============================================
	// Config Errors (C001-C099)
	// ============================================

	"C001": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Run 'reactor init' to write a default reactor.json",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The configuration file could not be parsed.",
	},
	"C003": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
	},
	"C004": {
		Category:   CategoryConfig,
		Message:    "Unsupported config format",
		Suggestion: "Use a .json or .toml file",
	},
	"C005": {
		Category: CategoryConfig,
		Message:  "Failed to write config",
	},

	// ============================================
	// CLI Errors (X001-X099)
	// ============================================

	"X001": {
		Category:   CategoryCLI,
		Message:    "Unknown scenario",
		Suggestion: "Run 'reactor demo --list' to see available scenarios",
	},
	"X002": {
		Category: CategoryCLI,
		Message:  "Failed to write output",
	},
	"X003": {
		Category:   CategoryCLI,
		Message:    "Upload failed",
		Suggestion: "Check AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and the record.bucket setting",
	},
	"X004": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
	"X005": {
		Category: CategoryCLI,
		Message:  "Scenario failed",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
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
