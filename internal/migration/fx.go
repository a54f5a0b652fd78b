package migration

import (
	"strings"

	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

func Run(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
	log = log.Named("migration")

	if !strings.EqualFold(strings.TrimSpace(cfg.Type), "postgres") {
		log.Info("applying schema from models", zap.String("type", cfg.Type))
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
