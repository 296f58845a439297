package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	StaffSecretKey   = "STAFF_SECRET"
	GuestSecretKey   = "GUEST_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	SessionsDir      = "SESSIONS_DIR"
	PlatformAdapter  = "PLATFORM_ADAPTER"
	FastAPIURL       = "FASTAPI_URL"
	ListenAddr       = "LISTEN_ADDR"
	WebUrl           = "WEB_URL"
)

// Validate panics when a required variable is missing. Called once from main
// after the .env file is loaded.
func Validate() {
	required := []string{
		AWSRegion,
		AWSID,
		AWSSecret,
		// AWSToken,
		StaffSecretKey,
		GuestSecretKey,
		ChatRedisURL,
	}
	for _, key := range required {
		if os.Getenv(key) == "" {
			panic("env: required environment variable not set: " + key)
		}
	}
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}
