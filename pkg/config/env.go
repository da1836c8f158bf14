package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "ATHENA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "ATHENA_APP_ENV"
	EnvAppPort = "ATHENA_APP_PORT"

	EnvDBDSN  = "ATHENA_DB_DSN"
	EnvDBHost = "ATHENA_DB_HOST"
	EnvDBUser = "ATHENA_DB_USER"
	EnvDBName = "ATHENA_DB_NAME"

	EnvRedisURL = "ATHENA_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
