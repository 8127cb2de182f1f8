package utils

import "go.uber.org/zap"

// Must stops the process on a startup error.
func Must(err error) {
	if err != nil {
		zap.L().Fatal("startup failed", zap.Error(err))
	}
}
