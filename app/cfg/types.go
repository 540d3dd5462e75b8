package cfg

import "time"

const (
	StorageFS    = "fs"
	StorageRedis = "redis"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Cfg struct {
	// Storage configuration
	DBPath         string
	StorageBackend string
	StorageDir     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Application configuration
	FeedsDir     string
	Port         string
	APIAccessKey string
	WorkerCount  int
	FetchTimeout time.Duration
	PollTimeout  time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}
