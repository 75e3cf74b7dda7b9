package logging

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/radlee/payments-api/infra/requestid"
)

// New builds the process logger. Production logs JSON with an ISO8601
// "timestamp"; any other env uses zap's development console config. When
// sink is non-nil every entry is also written to it as JSON.
func New(env string, sink io.Writer) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return logger, nil
	}
	sinkEncoder := zap.NewProductionEncoderConfig()
	sinkEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
	sinkEncoder.TimeKey = "timestamp"
	sinkCore := zapcore.NewCore(zapcore.NewJSONEncoder(sinkEncoder), zapcore.AddSync(sink), cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, sinkCore)
	})), nil
}

// Middleware logs one line per request, tagged with its request id.
func Middleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.With(zap.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("request_id", requestid.FromContext(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request failed", fields...)
		case c.Writer.Status() >= 400:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}
