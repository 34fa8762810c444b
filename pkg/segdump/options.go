package segdump

// DefaultMaxLines bounds a run to 255 decoded bytes.
const DefaultMaxLines = 256

// Options configures Run.
type Options struct {
	// MaxLines is the iteration cap. The iteration that reaches it stops
	// before reading, so at most MaxLines-1 bytes are decoded.
	MaxLines int
}

func (opts Options) withDefaults() Options {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	return opts
}
