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

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tomoncle/dynaquery/database"
)

const envPrefix = "DYNAQUERY"

// Config is the file layout of dynaquery.yaml. Every key can be overridden
// by an environment variable, e.g. DYNAQUERY_DATABASE_TYPE.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Schema     SchemaConfig     `mapstructure:"schema"`
	UnitOfWork UnitOfWorkConfig `mapstructure:"unit_of_work"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Type           string        `mapstructure:"type"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	InMemory       bool          `mapstructure:"in_memory"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	SlowQueryTime  time.Duration `mapstructure:"slow_query_time"`
	EnableQueryLog bool          `mapstructure:"enable_query_log"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
	EnableTracing  bool          `mapstructure:"enable_tracing"`
}

type SchemaConfig struct {
	CreateOnStartup  bool   `mapstructure:"create_on_startup"`
	EnableForeignKey bool   `mapstructure:"enable_foreign_key"`
	ForeignKeyFile   string `mapstructure:"foreign_key_file"`
}

type UnitOfWorkConfig struct {
	IdentityMapSize int `mapstructure:"identity_map_size"`
}

var _ database.AbstractDatabaseConfigProvider = (*Config)(nil)

func setDefaults(v *viper.Viper) {
	conn := database.DefaultConnectionConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "dynaquery")
	v.SetDefault("database.sslmode", "")
	v.SetDefault("database.in_memory", false)
	v.SetDefault("database.max_open_conns", conn.Pool.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", conn.Pool.MaxIdleConns)
	v.SetDefault("database.slow_query_time", conn.Telemetry.SlowQueryTime)
	v.SetDefault("database.enable_query_log", false)
	v.SetDefault("database.enable_metrics", false)
	v.SetDefault("database.enable_tracing", false)
	v.SetDefault("schema.create_on_startup", true)
	v.SetDefault("schema.enable_foreign_key", true)
	v.SetDefault("schema.foreign_key_file", "")
	v.SetDefault("unit_of_work.identity_map_size", database.DefaultIdentityMapSize)
}

// LoadConfig reads path, or ./dynaquery.yaml when path is empty. A missing
// default file is not an error; defaults and environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dynaquery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigLoader converts the file layout into the database configuration.
func (c *Config) ConfigLoader() *database.Config {
	conn := database.DefaultConnectionConfig()
	conn.Type = c.Database.Type
	conn.Host = c.Database.Host
	conn.Port = c.Database.Port
	conn.Username = c.Database.Username
	conn.Password = c.Database.Password
	conn.DBName = c.Database.DBName
	conn.SSLMode = c.Database.SSLMode
	conn.InMemory = c.Database.InMemory
	conn.Pool.MaxOpenConns = c.Database.MaxOpenConns
	conn.Pool.MaxIdleConns = c.Database.MaxIdleConns
	conn.Telemetry.SlowQueryTime = c.Database.SlowQueryTime
	conn.Telemetry.QueryLog = c.Database.EnableQueryLog
	conn.Telemetry.Metrics = c.Database.EnableMetrics
	conn.Telemetry.Tracing = c.Database.EnableTracing

	return &database.Config{
		ConnectionConfig: *conn,
		SchemaConfig: database.SchemaConfig{
			CreateOnStartup:  c.Schema.CreateOnStartup,
			EnableForeignKey: c.Schema.EnableForeignKey,
			ForeignKeyFile:   c.Schema.ForeignKeyFile,
		},
		UnitOfWorkConfig: database.UnitOfWorkConfig{
			IdentityMapSize: c.UnitOfWork.IdentityMapSize,
		},
	}
}
