package capture

// InputDevice abstracts the platform PCM input behind the SCO link. Platform
// adapter packages provide real implementations; tests use
// [github.com/wrenhold/soniclink/pkg/audio/capture/mock].
type InputDevice interface {
	// Open prepares the device for reading mono PCM16 at the given sample
	// rate with the given read buffer size in bytes. It must fail fast —
	// bad buffer size, missing permission, busy device — without leaving any
	// partial state behind.
	Open(sampleRate, bufSize int) error

	// Read fills buf with captured PCM bytes and returns the number of bytes
	// read. Read blocks until data is available or the device is closed.
	// Short reads are permitted.
	Read(buf []byte) (int, error)

	// Close releases the device handle. Safe to call more than once and
	// before a successful Open.
	Close() error
}
