package types

// ConnConfig represents the configuration required for database connection.
type ConnConfig struct {
	Host       string `validate:"required"`
	Port       int32  `validate:"gte=0"`
	DBName     string `validate:"required"`
	User       string `validate:"required"`
	Password   string `validate:"required"`
	MaxConn    int32
	IsLocalEnv bool
}
