// Package page implements 1-based pagination shared by list queries.
package page

// Defaults used when no configuration is supplied.
const (
	DefaultSize = 100
	MaxSize     = 1000
)

// Request is a 1-based page request.
type Request struct {
	Page int
	Size int
}

// Config bounds page sizes.
type Config struct {
	DefaultSize int
	MaxSize     int
}

// DefaultConfig returns Config{DefaultSize, MaxSize}.
func DefaultConfig() Config {
	return Config{DefaultSize: DefaultSize, MaxSize: MaxSize}
}

// Normalize clamps r: page < 1 becomes 1, size < 1 becomes the default, size above max becomes max.
func (c Config) Normalize(r Request) Request {
	if c.DefaultSize <= 0 {
		c.DefaultSize = DefaultSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = MaxSize
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Size < 1 {
		r.Size = c.DefaultSize
	}
	if r.Size > c.MaxSize {
		r.Size = c.MaxSize
	}
	return r
}

// Limit is the SQL LIMIT for r.
func (r Request) Limit() int { return r.Size }

// Offset is the SQL OFFSET for r.
func (r Request) Offset() int {
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.Size
}

// Slice applies r to an already ordered slice.
func Slice[T any](items []T, r Request) []T {
	off := r.Offset()
	if off >= len(items) {
		return nil
	}
	end := off + r.Limit()
	if end > len(items) || r.Limit() <= 0 {
		end = len(items)
	}
	return items[off:end]
}
