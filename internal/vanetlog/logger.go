// Package vanetlog wraps zap the way Vigneshboobathy-dag_rte's
// internal/logger package does: one process-wide *zap.Logger built from a
// level string, JSON-encoded, ISO8601 timestamps. Vehicle instances derive
// a child logger scoped to their own id via zap.Logger.With, rather than
// this package tracking one logger per vehicle.
package vanetlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level ("debug", "info", "warn",
// "error"), writing JSON lines to stderr.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	atom := zap.NewAtomicLevel()
	if level == "" {
		level = "info"
	}
	if err := atom.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		atom,
	)
	return zap.New(core, zap.AddCaller()), nil
}

// ForVehicle returns a child logger tagged with the vehicle's id.
func ForVehicle(base *zap.Logger, vehicleID string) *zap.Logger {
	return base.With(zap.String("vehicle", vehicleID))
}
