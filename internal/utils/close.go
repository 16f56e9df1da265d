package utils

import (
	"io"

	"github.com/MrSnakeDoc/matjip/internal/logger"
)

// Close closes c in a defer and reports failures at debug level.
// A nil logger drops the error.
func Close(c io.Closer, log logger.Logger) {
	if err := c.Close(); err != nil && log != nil {
		log.Debug("close failed", logger.Error(err))
	}
}
