package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "TABLESERVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "TABLESERVE_APP_ENV"
	EnvPort      = "TABLESERVE_APP_PORT"
	EnvDBDSN     = "TABLESERVE_DB_DSN"
	EnvDBHost    = "TABLESERVE_DB_HOST"
	EnvDBUser    = "TABLESERVE_DB_USER"
	EnvDBName    = "TABLESERVE_DB_NAME"
	EnvRedisURL  = "TABLESERVE_REDIS_URL"
	EnvJWTSecret = "TABLESERVE_JWT_SECRET"
	EnvJWTIssuer = "TABLESERVE_JWT_ISSUER"
	EnvTimeZone  = "TABLESERVE_ORDERING_TIME_ZONE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
