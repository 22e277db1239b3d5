package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"gcss/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// PanicLogName returns location of the crash output file which accompanies
// file log.
func (conf *LoggingConfig) PanicLogName() string {
	return filepath.Join(filepath.Dir(conf.FileLogger.Destination), misc.GetAppName()+"-panic.log")
}

// consoleEncoderConfig drops caller and timestamps, colors levels when
// stream is a terminal.
func consoleEncoderConfig(stream *os.File) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	if EnableColorOutput(stream) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return ec
}

// ConsoleOutput receives console messages below error level. It writes to
// stdout until program results claim it, after that to stderr.
type ConsoleOutput struct {
	claimed atomic.Bool
}

// ClaimStdout sends all further console messages to stderr.
func (o *ConsoleOutput) ClaimStdout() {
	o.claimed.Store(true)
}

func (o *ConsoleOutput) file() *os.File {
	if o.claimed.Load() {
		return os.Stderr
	}
	return os.Stdout
}

func (o *ConsoleOutput) Write(p []byte) (int, error) {
	return o.file().Write(p)
}

func (o *ConsoleOutput) Sync() error {
	return o.file().Sync()
}

func levelRange(from, to zapcore.Level) zap.LevelEnablerFunc {
	return func(lvl zapcore.Level) bool {
		return from <= lvl && lvl < to
	}
}

// Prepare returns program logger. Messages below error level go to out (stdout
// when out is nil), errors to stderr, everything allowed by file level to the
// log file. When report is requested file log is always written at debug
// level and recorded in the report together with crash output.
func (conf *LoggingConfig) Prepare(rpt *Report, out *ConsoleOutput) (*zap.Logger, error) {
	if out == nil {
		out = &ConsoleOutput{}
	}

	var consoleLow, consoleHigh zapcore.Core
	switch conf.ConsoleLogger.Level {
	case "normal", "debug":
		from := zapcore.InfoLevel
		if conf.ConsoleLogger.Level == "debug" {
			from = zapcore.DebugLevel
		}
		// out may switch streams later, color only when both are terminals
		lowStream := os.Stdout
		if !EnableColorOutput(os.Stderr) {
			lowStream = os.Stderr
		}
		consoleLow = zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig(lowStream)),
			zapcore.Lock(out), levelRange(from, zapcore.ErrorLevel))
		consoleHigh = zapcore.NewCore(newEncoder(consoleEncoderConfig(os.Stderr)),
			zapcore.Lock(os.Stderr), levelRange(zapcore.ErrorLevel, zapcore.InvalidLevel))
	default:
		consoleLow, consoleHigh = zapcore.NewNopCore(), zapcore.NewNopCore()
	}

	level, mode := conf.FileLogger.Level, conf.FileLogger.Mode
	if rpt != nil {
		level, mode = "debug", "overwrite"
	}

	fileCore, redirected, err := conf.fileCore(level, mode, rpt)
	if err != nil {
		return nil, err
	}

	log := zap.New(zapcore.NewTee(consoleHigh, consoleLow, fileCore), zap.AddCaller())
	if len(redirected) != 0 {
		log.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	return log.Named(misc.GetAppName()), nil
}

func openLog(fname, mode string) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if mode == "append" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(fname, flags, 0644)
}

// fileCore opens file log, falling back to temporary file when destination
// is not accessible. Name of the fallback file is returned.
func (conf *LoggingConfig) fileCore(level, mode string, rpt *Report) (zapcore.Core, string, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "normal":
		lvl = zapcore.InfoLevel
	default:
		return zapcore.NewNopCore(), "", nil
	}

	// capture panic output if possible, quietly ignore failures
	ef, err := openLog(conf.PanicLogName(), mode)
	if err != nil {
		ef, err = os.CreateTemp("", misc.GetAppName()+"-panic.*.log")
	}
	if err == nil {
		debug.SetCrashOutput(ef, debug.CrashOptions{})
		rpt.Store("panic.log", ef.Name())
		ef.Close()
	}

	var redirected string
	f, err := openLog(conf.FileLogger.Destination, mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+".*.log"); err != nil {
			return nil, "", fmt.Errorf("unable to access file log destination (%s): %w", conf.FileLogger.Destination, err)
		}
		redirected = f.Name()
	}
	rpt.Store("final.log", f.Name())

	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zapcore.NewCore(enc, zapcore.Lock(f), zap.NewAtomicLevelAt(lvl)), redirected, nil
}

// When logging error to console - do not output verbose message.

type consoleEnc struct {
	zapcore.Encoder
}

func newEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return consoleEnc{zapcore.NewConsoleEncoder(cfg)}
}

func (c consoleEnc) Clone() zapcore.Encoder {
	return consoleEnc{c.Encoder.Clone()}
}

func (c consoleEnc) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	newFields := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if f.Type == zapcore.ErrorType {
			// global stylesheet errors wrap parse errors, keep only the message
			f.Interface = errors.New(f.Interface.(error).Error())
		}
		newFields = append(newFields, f)
	}
	return c.Encoder.EncodeEntry(ent, newFields)
}
