/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package database

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/dynaquery/utils"
)

const loggerName = "DATABASE"

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var logLevelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LogLevelDebug || l > LogLevelError {
		return logLevelNames[LogLevelDebug]
	}
	return logLevelNames[l]
}

// Logger is the logging contract of the data layer. Fields are alternating
// key/value pairs.
type Logger interface {
	SetLevel(LogLevel)
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

var packageLogger struct {
	sync.RWMutex
	logger Logger
}

// SetLogger replaces the data layer logger. Components created earlier keep
// the logger they were given.
func SetLogger(l Logger) {
	packageLogger.Lock()
	defer packageLogger.Unlock()
	packageLogger.logger = l
}

// GetLogger returns the data layer logger, by default the logrus logger
// named DATABASE.
func GetLogger() Logger {
	packageLogger.RLock()
	l := packageLogger.logger
	packageLogger.RUnlock()
	if l != nil {
		return l
	}

	packageLogger.Lock()
	defer packageLogger.Unlock()
	if packageLogger.logger == nil {
		packageLogger.logger = NewLogrusLogger(utils.GetLogger(loggerName))
	}
	return packageLogger.logger
}

// LogrusLogger turns key/value pairs into logrus fields.
type LogrusLogger struct {
	logger *logrus.Logger
}

func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{logger: l}
}

func (l *LogrusLogger) Debug(msg string, fields ...interface{}) {
	l.with(fields).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, fields ...interface{}) {
	l.with(fields).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields ...interface{}) {
	l.with(fields).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, fields ...interface{}) {
	l.with(fields).Error(msg)
}

var logrusLevels = map[LogLevel]logrus.Level{
	LogLevelDebug: logrus.DebugLevel,
	LogLevelInfo:  logrus.InfoLevel,
	LogLevelWarn:  logrus.WarnLevel,
	LogLevelError: logrus.ErrorLevel,
}

func (l *LogrusLogger) SetLevel(level LogLevel) {
	if lvl, ok := logrusLevels[level]; ok {
		l.logger.SetLevel(lvl)
	}
}

// with keeps an unpaired trailing value under "_extra".
func (l *LogrusLogger) with(kv []interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		fields["_extra"] = kv[len(kv)-1]
	}
	return l.logger.WithFields(fields)
}
