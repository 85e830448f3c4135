package publisher

// Publisher represents a service for publishing price-change events
type Publisher interface {
	// Publish publishes a message under the given supermarket key
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
