package config

// EnvPrefix is empty because every field carries its full COUNTERPOS_* name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv               = "COUNTERPOS_APP_ENV"
	EnvPort                 = "COUNTERPOS_APP_PORT"
	EnvDBDSN                = "COUNTERPOS_DB_DSN"
	EnvDBHost               = "COUNTERPOS_DB_HOST"
	EnvDBUser               = "COUNTERPOS_DB_USER"
	EnvDBName               = "COUNTERPOS_DB_NAME"
	EnvDBPassword           = "COUNTERPOS_DB_PASSWORD"
	EnvUseSQLite            = "COUNTERPOS_USE_SQLITE"
	EnvLocalDBPath          = "COUNTERPOS_LOCAL_DB_PATH"
	EnvRedisURL             = "COUNTERPOS_REDIS_URL"
	EnvSyncProbeInterval    = "COUNTERPOS_SYNC_PROBE_INTERVAL"
	EnvSyncRemoteTimeout    = "COUNTERPOS_SYNC_REMOTE_TIMEOUT"
	EnvOrderIDPrefix        = "COUNTERPOS_ORDER_ID_PREFIX"
	EnvOrderOfflineIDPrefix = "COUNTERPOS_ORDER_OFFLINE_ID_PREFIX"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
