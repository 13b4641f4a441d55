package types

const (
	EnvToken          = "GH_TOKEN"
	EnvOrg            = "GH_ORG"
	EnvAppID          = "GH_EC_AUDIT_APP_ID"
	EnvInstallID      = "GH_EC_AUDIT_INSTALL_ID"
	EnvPrivateKeyFile = "GH_EC_AUDIT_PRIVATE_KEY_FILE"
	EnvPrivateKeyData = "GH_EC_AUDIT_PRIVATE_KEY_DATA"
	EnvLogFormat      = "GH_EC_AUDIT_LOG_FORMAT"
	EnvLogLevel       = "GH_EC_AUDIT_LOG_LEVEL"
	EnvSlackWebhook   = "GH_EC_AUDIT_SLACK_WEBHOOK"
	EnvThread         = "GH_EC_AUDIT_THREAD"
	EnvLimit          = "GH_EC_AUDIT_LIMIT"
)
