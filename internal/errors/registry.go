package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Persistence Errors (D001-D049)
	// ============================================

	"D001": {
		Category: CategoryPersistence,
		Message:  "Persisted state could not be loaded",
		Detail:   "The storage backend returned an error while reading the key. The store was constructed from its default value instead.",
	},
	"D002": {
		Category: CategoryPersistence,
		Message:  "Persisted state could not be decoded",
		Detail:   "The bytes stored under the key are not a valid encoding of the store's state. The store was constructed from its default value instead.",
	},
	"D003": {
		Category: CategoryPersistence,
		Message:  "State could not be saved",
		Detail:   "The storage backend returned an error while writing the key. The in-memory state is unaffected but will not survive a restart.",
	},
	"D004": {
		Category: CategoryPersistence,
		Message:  "State could not be encoded",
		Detail:   "The store's state could not be serialized with its codec. Check that every field is exported and supported by the codec.",
	},
	"D005": {
		Category: CategoryPersistence,
		Message:  "No backend configured for storage area",
		Detail:   "A persistent store asked for an area that has no backend. Configure one with storage.NewAreas or the storage section of dux.json.",
	},
	"D006": {
		Category: CategoryPersistence,
		Message:  "Storage backend is closed",
		Detail:   "The backend was closed before the operation ran. This usually happens during shutdown.",
	},
	"D007": {
		Category: CategoryPersistence,
		Message:  "Storage backend does not support watching",
		Detail:   "A persistent store requested synchronization but the backend for its area cannot report external changes. Use the file backend or drop WithSync.",
	},

	// ============================================
	// Store Errors (D050-D099)
	// ============================================

	"D050": {
		Category: CategoryStore,
		Message:  "Store definition is not comparable",
		Detail:   "The registry keys stores by their definition value. Define stores with the store package constructors or use a pointer type.",
	},
	"D051": {
		Category: CategoryStore,
		Message:  "Store definition registered with a different state type",
		Detail:   "The same definition value was used with two different state types. Each definition must describe exactly one state type.",
	},
	"D052": {
		Category: CategoryStore,
		Message:  "Store not found",
		Detail:   "No constructed store has this name. Stores appear once they are first read or subscribed to.",
	},
	"D053": {
		Category: CategoryStore,
		Message:  "Change predicate does not match the state type",
		Detail:   "WithEquals must be given func(a, b S) bool where S is the state type of the store.",
	},

	// ============================================
	// Config Errors (D100-D149)
	// ============================================

	"D100": {
		Category: CategoryConfig,
		Message:  "Config file could not be read",
	},
	"D101": {
		Category: CategoryConfig,
		Message:  "Config file could not be parsed",
		Detail:   "dux.json must be valid JSON and dux.yaml valid YAML.",
	},
	"D102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	"D103": {
		Category: CategoryConfig,
		Message:  "Storage backend could not be opened",
	},

	// ============================================
	// CLI Errors (D150-D199)
	// ============================================

	"D150": {
		Category: CategoryCLI,
		Message:  "Unknown storage area",
		Detail:   "Valid areas are \"durable\" and \"session\".",
	},
	"D151": {
		Category: CategoryCLI,
		Message:  "Key not found",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
