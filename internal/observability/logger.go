package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/robolink/internal/logging"
)

// ComponentLogger returns the process logger tagged with app.
func ComponentLogger(app string) zerolog.Logger {
	return logs.Logger().With().Str("app", app).Logger()
}
