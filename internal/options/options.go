package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Flags use the same names with dashes.
const (
	KeyMaxLines   = "max_lines"
	KeyFile       = "file"
	KeyPort       = "port"
	KeyBaudRate   = "baud_rate"
	KeyDataBits   = "data_bits"
	KeyStopBits   = "stop_bits"
	KeyParityMode = "parity_mode"
	KeyOutput     = "output"
	KeyLogLevel   = "log_level"
	KeyReplay     = "replay"
	KeyReplayRate = "replay_interval"
	KeyListen     = "listen"

	EnvPrefix = "SEGDUMP"

	DefaultMaxLines = 256
)

// Output formats accepted by KeyOutput.
const (
	OutputText   = "text"
	OutputJSON   = "json"
	OutputLanes  = "lanes"
	OutputFrames = "frames"
)

// DefaultReplayInterval throttles replayed captures to about one byte per
// millisecond.
const DefaultReplayInterval = time.Millisecond

var parityModes = map[string]serial.ParityMode{
	"none": serial.PARITY_NONE,
	"odd":  serial.PARITY_ODD,
	"even": serial.PARITY_EVEN,
}

// Options is the validated runtime configuration.
type Options struct {
	MaxLines int
	File     string
	Port     string
	BaudRate uint
	DataBits uint
	StopBits uint
	Parity   serial.ParityMode
	Output   string
	LogLevel logrus.Level
	// Replay rewinds File at EOF, reading one byte per ReplayInterval.
	Replay         bool
	ReplayInterval time.Duration
	// Listen is the address frame snapshots are served on over websocket.
	Listen string
}

// UsesStdin reports whether neither a file nor a serial port was selected.
func (o Options) UsesStdin() bool {
	return o.File == "" && o.Port == ""
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMaxLines, DefaultMaxLines)
	v.SetDefault(KeyFile, "")
	v.SetDefault(KeyPort, "")
	v.SetDefault(KeyBaudRate, 9600)
	v.SetDefault(KeyDataBits, 8)
	v.SetDefault(KeyStopBits, 1)
	v.SetDefault(KeyParityMode, "even")
	v.SetDefault(KeyOutput, OutputText)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyReplay, false)
	v.SetDefault(KeyReplayRate, DefaultReplayInterval)
	v.SetDefault(KeyListen, "")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags maps dashed flag names onto configuration keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %q: %w", f.Name, err)
		}
	})
	return bindErr
}

// ReadFile merges the config file at path, if any.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load validates the merged configuration.
func Load(v *viper.Viper) (Options, error) {
	opts := Options{
		MaxLines: v.GetInt(KeyMaxLines),
		File:     strings.TrimSpace(v.GetString(KeyFile)),
		Port:     strings.TrimSpace(v.GetString(KeyPort)),
		BaudRate: v.GetUint(KeyBaudRate),
		DataBits: v.GetUint(KeyDataBits),
		StopBits: v.GetUint(KeyStopBits),
		Output:   strings.ToLower(strings.TrimSpace(v.GetString(KeyOutput))),

		Replay:         v.GetBool(KeyReplay),
		ReplayInterval: v.GetDuration(KeyReplayRate),
		Listen:         strings.TrimSpace(v.GetString(KeyListen)),
	}
	if opts.MaxLines < 1 {
		return Options{}, fmt.Errorf("max lines must be at least 1, got %d", opts.MaxLines)
	}
	if opts.File != "" && opts.Port != "" {
		return Options{}, fmt.Errorf("file %q and port %q are mutually exclusive", opts.File, opts.Port)
	}
	if opts.Replay && opts.File == "" {
		return Options{}, fmt.Errorf("replay needs a capture file")
	}
	if opts.ReplayInterval < 0 {
		return Options{}, fmt.Errorf("replay interval must not be negative, got %s", opts.ReplayInterval)
	}
	switch opts.Output {
	case OutputText, OutputJSON, OutputLanes, OutputFrames:
	default:
		return Options{}, fmt.Errorf("unknown output format %q (want %s, %s, %s or %s)",
			opts.Output, OutputText, OutputJSON, OutputLanes, OutputFrames)
	}
	parity, err := ParseParity(v.GetString(KeyParityMode))
	if err != nil {
		return Options{}, err
	}
	opts.Parity = parity
	level, err := logrus.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return Options{}, fmt.Errorf("invalid log level: %w", err)
	}
	opts.LogLevel = level
	return opts, nil
}

// ParseParity accepts none, odd or even, case-insensitively.
func ParseParity(input string) (serial.ParityMode, error) {
	mode, ok := parityModes[strings.ToLower(strings.TrimSpace(input))]
	if !ok {
		return 0, fmt.Errorf("unknown parity mode %q", input)
	}
	return mode, nil
}
