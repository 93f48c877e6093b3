package config

const (
	EnvPrefix = "brandops"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "BRANDOPS_APP_ENV"
	EnvPort   = "BRANDOPS_APP_PORT"
	EnvDBDSN  = "BRANDOPS_DB_DSN"
	EnvDBHost = "BRANDOPS_DB_HOST"
	EnvDBUser = "BRANDOPS_DB_USER"
	EnvDBName = "BRANDOPS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
