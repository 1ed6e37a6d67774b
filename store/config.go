package store

// Config holds configuration for the Store.
type Config struct {
	// TableName is the unprefixed name of the pointer table.
	// Default: "document-pointer"
	TableName string

	// EnvironmentPrefix is prepended to TableName (e.g. "nrlf-dev-").
	// Default: "" (no prefix)
	EnvironmentPrefix string

	// IndexName is the global secondary index keyed by subject (pk_1) and id (sk_1).
	// Default: "idx_gsi_1"
	IndexName string

	// DefaultPageLimit is used when a search does not set a limit.
	// Default: 20
	DefaultPageLimit int

	// MaxPageLimit caps the limit a search may ask for.
	// Default: 50. Always kept below ResultCeiling, since a page fetch asks
	// the engine for one item more than the page limit.
	MaxPageLimit int

	// ResultCeiling is the most items a single fetch may report before the
	// search fails with ErrTooManyResults instead of returning a truncated page.
	// Default: 100
	ResultCeiling int
}

// DefaultConfig returns the configuration used by the deployed registry.
func DefaultConfig() Config {
	return Config{
		TableName:        TableName(),
		IndexName:        "idx_gsi_1",
		DefaultPageLimit: 20,
		MaxPageLimit:     50,
		ResultCeiling:    100,
	}
}

// QualifiedTableName returns the environment-scoped table name.
func (c Config) QualifiedTableName() string {
	return c.EnvironmentPrefix + c.TableName
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.TableName == "" {
		c.TableName = def.TableName
	}
	if c.IndexName == "" {
		c.IndexName = def.IndexName
	}
	if c.ResultCeiling < 2 {
		c.ResultCeiling = def.ResultCeiling
	}
	if c.MaxPageLimit < 1 {
		c.MaxPageLimit = def.MaxPageLimit
	}
	if c.MaxPageLimit >= c.ResultCeiling {
		c.MaxPageLimit = c.ResultCeiling - 1
	}
	if c.DefaultPageLimit < 1 {
		c.DefaultPageLimit = def.DefaultPageLimit
	}
	if c.DefaultPageLimit > c.MaxPageLimit {
		c.DefaultPageLimit = c.MaxPageLimit
	}
}

// pageLimit resolves a requested limit against the defaults.
func (c Config) pageLimit(requested int) int {
	switch {
	case requested <= 0:
		return c.DefaultPageLimit
	case requested > c.MaxPageLimit:
		return c.MaxPageLimit
	default:
		return requested
	}
}
