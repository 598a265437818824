package logger

import (
	"os"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	gormlogger "gorm.io/gorm/logger"
)

// Configure 初始化全局 zerolog 日志：控制台 + 滚动文件
func Configure(level, file string) {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}

	var logger zerolog.Logger
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		logger = zerolog.New(zerolog.MultiLevelWriter(console, rotating))
	} else {
		logger = zerolog.New(console)
	}

	log.Logger = logger.With().
		Timestamp().
		Caller().
		Logger().
		Level(ParseLevel(level))
}

// ParseLevel 未知级别回退到 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Gorm 返回写入 zerolog 的 gorm 日志器
func Gorm(level zerolog.Level) gormlogger.Interface {
	gormLevel := gormlogger.Warn
	if level <= zerolog.DebugLevel {
		gormLevel = gormlogger.Info
	}

	l := log.Logger.With().Str("component", "gorm").Logger()
	return gormlogger.New(
		&l,
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
