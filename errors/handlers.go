package errors

import (
	"go.uber.org/zap"
)

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	var parleyErr *ParleyError
	if As(err, &parleyErr) {
		fields := []zap.Field{
			zap.String("error_type", string(parleyErr.Type)),
			zap.String("message", parleyErr.Message),
			zap.Int("code", parleyErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", parleyErr.Details),
		}
		if cause := parleyErr.Unwrap(); cause != nil {
			fields = append(fields, zap.NamedError("cause", cause))
		}
		if parleyErr.Code >= 500 {
			logger.Error("request error", fields...)
		} else {
			logger.Warn("request error", fields...)
		}
		return
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
