package config

// Config is the on-disk service configuration (JSON or YAML). Unknown keys
// are rejected so typos surface on load and on hot reload.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Transport TransportConfig `json:"transport"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Clock     ClockConfig     `json:"clock"`
	Logging   LoggingConfig   `json:"logging"`
	Notify    NotifyConfig    `json:"notify"`
}

// ServerConfig controls the HTTP API. Addr defaults to ":3000"; PORT in the
// environment overrides it.
type ServerConfig struct {
	Addr         string `json:"addr"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// ShutdownTimeout bounds graceful HTTP shutdown (default 5s).
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

// StorageConfig selects the job store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/jobs.json" }
//
// Drivers: file (default), sqlite, postgres, memory, none.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres; prefer WABLAST_STORAGE_DSN
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// TransportConfig points at the messaging gateway. Driver "dryrun" logs sends
// without delivering anything.
type TransportConfig struct {
	Driver         string `json:"driver"`
	BaseURL        string `json:"base_url,omitempty"`
	Username       string `json:"username,omitempty"`
	Password       string `json:"password,omitempty"`
	Timeout        string `json:"timeout,omitempty"`
	HealthInterval string `json:"health_interval,omitempty"`
}

// SchedulerConfig controls trigger evaluation.
type SchedulerConfig struct {
	// Trigger timezone (IANA). Default Asia/Jakarta.
	Timezone string `json:"timezone,omitempty"`
}

// DelayRange is an inclusive random pause between consecutive sends.
type DelayRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// DispatchConfig controls pacing of broadcast and validation passes.
//
// SendsPerMinute: 0 keeps the default (20), a negative value disables the
// global limiter.
type DispatchConfig struct {
	BroadcastDelay      *DelayRange `json:"broadcast_delay,omitempty"`
	ValidateDelay       *DelayRange `json:"validate_delay,omitempty"`
	CountryCode         string      `json:"country_code,omitempty"`
	ContactSuffix       string      `json:"contact_suffix,omitempty"`
	MaxConcurrentPasses int         `json:"max_concurrent_passes,omitempty"`
	SendsPerMinute      int         `json:"sends_per_minute,omitempty"`
	SendTimeout         string      `json:"send_timeout,omitempty"`
}

// ClockConfig controls the online time correction. An empty URL uses
// worldtimeapi.org for the scheduler timezone; "off" keeps the system clock.
type ClockConfig struct {
	URL      string `json:"url,omitempty"`
	Interval string `json:"sync_interval,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards records at or above MinLevel to an operator chat.
// The bot token is read from TELEGRAM_TOKEN when not set here.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// NotifyConfig controls the observer fan-out.
type NotifyConfig struct {
	Websocket WebsocketConfig `json:"websocket"`
	Redis     RedisConfig     `json:"redis"`
}

type WebsocketConfig struct {
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Channel  string `json:"channel,omitempty"`
}
