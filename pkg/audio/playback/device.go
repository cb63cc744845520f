package playback

// OutputDevice abstracts the platform PCM output (headset speaker or default
// route). Platform adapter packages provide real implementations; tests use
// [github.com/wrenhold/soniclink/pkg/audio/playback/mock].
type OutputDevice interface {
	// Open prepares the device for mono PCM16 output at the given sample
	// rate, routing to the Bluetooth link when routeToBluetooth is set.
	// It must fail fast without leaving partial state behind.
	Open(sampleRate int, routeToBluetooth bool) error

	// Write submits PCM bytes to the device buffer and returns the number of
	// bytes accepted. Write may block while the hardware buffer is full.
	Write(pcm []byte) (int, error)

	// Close halts output and releases the device handle. Safe to call more
	// than once and before a successful Open.
	Close() error
}
