package config

// EnvPrefix is the envconfig prefix for all Stockline variables.
const EnvPrefix = "STOCKLINE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "STOCKLINE_APP_ENV"
	EnvPort     = "STOCKLINE_APP_PORT"
	EnvDBDSN    = "STOCKLINE_DB_DSN"
	EnvDBHost   = "STOCKLINE_DB_HOST"
	EnvDBUser   = "STOCKLINE_DB_USER"
	EnvDBName   = "STOCKLINE_DB_NAME"
	EnvRedisURL = "STOCKLINE_REDIS_URL"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
