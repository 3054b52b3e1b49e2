package configmgr

import "github.com/globalbus/dalesbred/pkg/dbx/types"

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLoggingConfig() *LoggingConfig
	GetDatabaseConfig() *DatabaseConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "TestApp"
environment: "development"
version: "1.0"
logging:
  level: "debug"
database:
  host: localhost
  port: 5432
  dbName: app
  user: app
  password: secret
  maxConn: 4
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Database    *DatabaseConfig `mapstructure:"database"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig - database connection properties.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int32  `mapstructure:"port"`
	DBName   string `mapstructure:"dbName"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConn  int32  `mapstructure:"maxConn"`
}

// ToConnConfig converts the loaded database properties to the connection
// configuration the provider consumes.
func (d *DatabaseConfig) ToConnConfig(isLocalEnv bool) types.ConnConfig {
	return types.ConnConfig{
		Host:       d.Host,
		Port:       d.Port,
		DBName:     d.DBName,
		User:       d.User,
		Password:   d.Password,
		MaxConn:    d.MaxConn,
		IsLocalEnv: isLocalEnv,
	}
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	return cfg.Logging
}

func (cfg BaseConfig) GetDatabaseConfig() *DatabaseConfig {
	return cfg.Database
}
