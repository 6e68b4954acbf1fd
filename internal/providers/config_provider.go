package providers

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"parasited/internal/structures"
	"path/filepath"
	"strings"
	"time"
)

const AppName = "ParasiteDaemon"

// ReloadFunc receives the freshly decoded config after the file changed on disk.
type ReloadFunc func(conf *structures.Config)

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.saveInterval", 30*time.Second)
	v.SetDefault("retention.days", 90)
	v.SetDefault("retention.interval", time.Hour)
	v.SetDefault("clock.timezone", "Local")
	v.SetDefault("sync.callTimeout", 5*time.Second)
	v.SetDefault("sync.pingInterval", 30*time.Second)
	v.SetDefault("sync.subscriberBuffer", 64)
	v.SetDefault("sync.rateLimit", 50)
	v.SetDefault("sync.rateBurst", 100)
}

func newViper(flags *structures.CliFlags) *viper.Viper {
	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	setDefaults(v)

	v.BindEnv("logger.level", "PARASITE_LOG_LEVEL")
	v.BindEnv("storage.driver", "PARASITE_STORAGE_DRIVER")
	v.BindEnv("storage.saveInterval", "PARASITE_SAVE_INTERVAL")
	v.BindEnv("storage.postgresDsn", "PARASITE_POSTGRES_DSN")
	v.BindEnv("storage.redis.addr", "PARASITE_REDIS_ADDR")
	v.BindEnv("storage.redis.password", "PARASITE_REDIS_PASSWORD")
	v.BindEnv("retention.days", "PARASITE_RETENTION_DAYS")
	v.BindEnv("clock.timezone", "PARASITE_TIMEZONE")
	v.BindEnv("cache.enabled", "PARASITE_CACHE_ENABLED")
	v.BindEnv("cache.size", "PARASITE_CACHE_SIZE")
	return v
}

func decode(v *viper.Viper, flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config
	err := v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = AppName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode
	return &conf, nil
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	v := newViper(flags)
	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}
	return decode(v, flags)
}

// WatchConfig re-reads the config file on every change and hands valid
// results to onReload. Invalid edits are logged and ignored.
func WatchConfig(flags *structures.CliFlags, logger Logger, onReload ReloadFunc) error {
	v := newViper(flags)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		conf, err := decode(v, flags)
		if err != nil {
			logger.Warnf(TypeApp, "Ignoring invalid config change in %s: %s", e.Name, err)
			return
		}
		logger.Infof(TypeApp, "Config reloaded from %s", e.Name)
		onReload(conf)
	})
	v.WatchConfig()
	return nil
}
