// Package config loads the Agent's and Scheduler's configuration via viper,
// layering environment overrides on top of mapstructure-tagged defaults.
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/procflow/control-plane/internal/obs"
)

// Logger mirrors the subset of logging options either service exposes.
type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Agent is the Node Agent's configuration surface.
type Agent struct {
	Port   int    `mapstructure:"port"`
	Logger Logger `mapstructure:"logger"`
}

// Scheduler is the Scheduler's configuration surface.
type Scheduler struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	StateFilePath       string        `mapstructure:"state_file_path"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	HealthCheckTimeout  time.Duration `mapstructure:"health_check_timeout"`
	FailureThreshold    int           `mapstructure:"failure_threshold"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RecoveryPeriod      time.Duration `mapstructure:"recovery_period"`
	StateSavePeriod     time.Duration `mapstructure:"state_save_period"`
	CPUPlacementCeiling float64       `mapstructure:"cpu_placement_ceiling"`
	RPCTimeout          time.Duration `mapstructure:"rpc_timeout"`
	Logger              Logger        `mapstructure:"logger"`
}

func newViper(name string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orchestrator/")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// LoadAgent reads agent.yaml (if present) and environment overrides, applying
// defaults where nothing else is set.
func LoadAgent() (*Agent, error) {
	v := newViper("agent")
	v.SetDefault("port", 8080)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.BindEnv("port", "AGENT_PORT")
	v.BindEnv("logger.level", "AGENT_LOG_LEVEL")

	if err := readOptional(v); err != nil {
		return nil, err
	}

	var cfg Agent
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	watchLevel(v)
	return &cfg, nil
}

// LoadScheduler reads scheduler.yaml (if present) and environment overrides,
// applying defaults where nothing else is set.
func LoadScheduler() (*Scheduler, error) {
	v := newViper("scheduler")
	v.SetDefault("host", "")
	v.SetDefault("port", 5000)
	v.SetDefault("state_file_path", "orchestrator_state.json")
	v.SetDefault("health_check_interval", 3*time.Second)
	v.SetDefault("health_check_timeout", 2*time.Second)
	v.SetDefault("failure_threshold", 2)
	v.SetDefault("max_retries", 3)
	v.SetDefault("recovery_period", 1*time.Second)
	v.SetDefault("state_save_period", 30*time.Second)
	v.SetDefault("cpu_placement_ceiling", 80.0)
	v.SetDefault("rpc_timeout", 10*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.BindEnv("host", "SCHED_HOST")
	v.BindEnv("port", "SCHED_PORT")
	v.BindEnv("state_file_path", "SCHED_STATE_FILE_PATH")
	v.BindEnv("failure_threshold", "SCHED_FAILURE_THRESHOLD")
	v.BindEnv("max_retries", "SCHED_MAX_RETRIES")
	v.BindEnv("logger.level", "SCHED_LOG_LEVEL")

	if err := readOptional(v); err != nil {
		return nil, err
	}

	var cfg Scheduler
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	watchLevel(v)
	return &cfg, nil
}

func readOptional(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// watchLevel re-applies the logger level whenever the config file changes,
// via the shared dynamic atomic-level wiring. A missing config file means
// WatchConfig has nothing to watch; viper handles that silently.
func watchLevel(v *viper.Viper) {
	v.OnConfigChange(func(in fsnotify.Event) {
		if in.Op&fsnotify.Write != 0 {
			if err := obs.SetLevel(v.GetString("logger.level")); err != nil {
				_ = err // best-effort; invalid level leaves the prior one in place
			}
		}
	})
	v.WatchConfig()
}
