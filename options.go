package nvs

// options defines the tunable configuration of a filesystem instance.
type options struct {
	// offset of the storage region within the device.
	offset int64

	// cacheSize is the number of lookup cache slots; 0 disables the
	// cache.
	cacheSize int
}

// Option is a function that configures the filesystem options.
type Option func(*options)

// WithOffset places the storage region at the given byte offset within
// the device instead of at its start.
func WithOffset(offset int64) Option {
	return func(o *options) {
		o.offset = offset
	}
}

// WithLookupCache enables the in-memory id lookup cache with the given
// number of slots. The cache only accelerates reads and dedup checks;
// correctness never depends on it.
func WithLookupCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		offset:    0,
		cacheSize: 0,
	}
}
