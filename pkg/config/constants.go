package config

const (
	// EnvPrefix is passed to envconfig; individual tags spell the full
	// variable names so the prefix stays empty here.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BOXVALET_DB_DSN"
	EnvDBHost = "BOXVALET_DB_HOST"
	EnvDBUser = "BOXVALET_DB_USER"
	EnvDBName = "BOXVALET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
