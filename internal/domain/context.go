package domain

// SourceContext is the correlation payload attached to a dynamic metadata
// fetch at registration time and handed back unchanged when the fetch
// resolves. It is the only channel for carrying the parent market identity
// and the triggering block timestamp across the suspension boundary.
type SourceContext struct {
	values map[string]any
}

// NewSourceContext returns an empty, writable context.
func NewSourceContext() SourceContext {
	return SourceContext{values: make(map[string]any)}
}

// SetString stores a string value under key.
func (c SourceContext) SetString(key, value string) {
	c.values[key] = value
}

// GetString returns the string stored under key, or false when the key is
// absent or holds a non-string value.
func (c SourceContext) GetString(key string) (string, bool) {
	v, ok := c.values[key].(string)
	return v, ok
}

// SetInt64 stores an integer value under key.
func (c SourceContext) SetInt64(key string, value int64) {
	c.values[key] = value
}

// GetInt64 returns the integer stored under key, or false when the key is
// absent or holds a non-integer value.
func (c SourceContext) GetInt64(key string) (int64, bool) {
	v, ok := c.values[key].(int64)
	return v, ok
}
