package config

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

// InitPostgres opens the entity store. Slow queries and gorm warnings go to
// log; record-not-found is expected by the repositories and stays quiet.
func InitPostgres(c Connections, log *logrus.Logger) error {
	if c.PostgresURI == "" {
		return errNoPostgres
	}

	gl := gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(postgres.Open(c.PostgresURI), &gorm.Config{
		Logger:  gl,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(c.PostgresMaxIdle)
	sqlDB.SetMaxOpenConns(c.PostgresMaxOpen)
	sqlDB.SetConnMaxLifetime(c.PostgresLifetime)
	sqlDB.SetConnMaxIdleTime(c.PostgresLifetime / 6)

	PostgresDB = db
	return nil
}
