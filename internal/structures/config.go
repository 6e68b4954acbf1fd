package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StorageConfig selects the persistent store backend. Only the fields of
// the selected driver are read.
type StorageConfig struct {
	Driver       string        `yaml:"driver" validate:"required|in:memory,file,sqlite,postgres,badger,redis"`
	FilePath     string        `yaml:"filePath"`
	SaveInterval time.Duration `yaml:"saveInterval"`
	SqlitePath   string        `yaml:"sqlitePath"`
	PostgresDSN  string        `yaml:"postgresDsn"`
	BadgerDir    string        `yaml:"badgerDir"`
	Redis        RedisConfig   `yaml:"redis"`
}

type RetentionConfig struct {
	Days     int           `yaml:"days" validate:"required|uint|min:1"`
	Interval time.Duration `yaml:"interval" validate:"required|min:1"`
}

type ClockConfig struct {
	Timezone string `yaml:"timezone"`
}

type SyncConfig struct {
	CallTimeout      time.Duration `yaml:"callTimeout"`
	PingInterval     time.Duration `yaml:"pingInterval"`
	SubscriberBuffer int           `yaml:"subscriberBuffer"`
	RateLimit        float64       `yaml:"rateLimit"`
	RateBurst        int           `yaml:"rateBurst"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server          `yaml:"webServer"`
	Logger    LoggerConfig    `yaml:"logger"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Clock     ClockConfig     `yaml:"clock"`
	Sync      SyncConfig      `yaml:"sync"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}
