// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverNamePostgres = "postgres"
	DriverNameMysql    = "mysql"
)

func getDialector(conf DatabaseConfig) (gorm.Dialector, error) {
	switch conf.Driver {
	case DriverNamePostgres:
		sslMode := conf.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		timeZone := conf.TimeZone
		if timeZone == "" {
			timeZone = "UTC"
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			conf.Host, conf.UserName, conf.Password, conf.DBName, conf.Port, sslMode, timeZone)
		return postgres.Open(dsn), nil
	case DriverNameMysql:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			conf.UserName, conf.Password, conf.Host, conf.Port, conf.DBName)
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", conf.Driver)
	}
}

// NullLogger silences gorm's own logging; SQL errors surface as returned errors.
type NullLogger struct{}

func (NullLogger) LogMode(logger.LogLevel) logger.Interface { return NullLogger{} }

func (NullLogger) Info(context.Context, string, ...interface{}) {}

func (NullLogger) Warn(context.Context, string, ...interface{}) {}

func (NullLogger) Error(context.Context, string, ...interface{}) {}

func (NullLogger) Trace(context.Context, time.Time, func() (string, int64), error) {}
