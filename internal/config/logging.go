package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the engine's structured logger from LogsConfig
//: console or JSON encoding selected by ConsoleFormat, level
// parsed from Level (defaulting to info), optionally also writing to a
// file under Dir when FileEnabled.
func (c *Config) NewLogger() (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if c.Logs.Level != "" {
		if err := level.UnmarshalText([]byte(c.Logs.Level)); err != nil {
			return nil, fmt.Errorf("config: parsing LOGS__LEVEL %q: %w", c.Logs.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if c.Logs.ConsoleFormat == "json" {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)}

	if c.Logs.FileEnabled && c.Logs.Dir != "" {
		if err := os.MkdirAll(c.Logs.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: creating log dir %s: %w", c.Logs.Dir, err)
		}
		f, err := os.OpenFile(filepath.Join(c.Logs.Dir, "oracleplane.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("config: opening log file: %w", err)
		}
		fileLevel := level
		if c.Logs.ExtLevel != "" {
			if err := fileLevel.UnmarshalText([]byte(c.Logs.ExtLevel)); err != nil {
				return nil, fmt.Errorf("config: parsing LOGS__EXT_LEVEL %q: %w", c.Logs.ExtLevel, err)
			}
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), fileLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	return logger.Sugar(), nil
}
