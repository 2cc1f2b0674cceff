package migrate

import (
	"time"

	"go.uber.org/zap"

	rootpkg "github.com/getpup/migrate"
)

// LogEvents returns an Events observer that reports every lifecycle
// notification through logger. Use it with WithEvents when no custom
// callbacks are needed:
//
//	m, err := migrate.New(
//	    migrate.WithStore(s),
//	    migrate.WithDir("migrations"),
//	    migrate.WithEvents(migrate.LogEvents(logger)),
//	)
func LogEvents(logger *zap.Logger) *Events {
	return &rootpkg.Events{
		OnStart: func(name ID, direction rootpkg.Direction) {
			logger.Info("migration started",
				zap.String("migration", string(name)),
				zap.String("direction", string(direction)))
		},
		OnComplete: func(name ID, direction rootpkg.Direction, elapsed time.Duration) {
			logger.Info("migration completed",
				zap.String("migration", string(name)),
				zap.String("direction", string(direction)),
				zap.Duration("elapsed", elapsed))
		},
		OnSkip: func(name ID, direction rootpkg.Direction) {
			logger.Info("migration skipped",
				zap.String("migration", string(name)),
				zap.String("direction", string(direction)))
		},
		OnWait: func(attempt int) {
			logger.Warn("waiting for migration lock",
				zap.Int("attempt", attempt))
		},
	}
}
