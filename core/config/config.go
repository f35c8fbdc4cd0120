package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gradlab/common"
	"gradlab/core/controller"
	"gradlab/core/dataset"
	"gradlab/core/engine"
	"gradlab/core/server"
	"gradlab/core/store"
)

const (
	EnvPrefix   = "gradlab"
	EnvCfgPath  = "GRADLAB_CFG_PATH"
	ConfigName  = "gradlab_config"
	defaultAddr = "127.0.0.1:8080"
)

type LogSection struct {
	BriefMode      string            `mapstructure:"brief_mode"`
	Path           string            `mapstructure:"path"`
	Level          string            `mapstructure:"level"`
	ModuleLevel    map[string]string `mapstructure:"module_level"`
	RotationMaxAge int               `mapstructure:"rotation_max_age"`
	RotationTime   int               `mapstructure:"rotation_time"`
	RotationSize   int               `mapstructure:"rotation_size"`
	ShowLine       bool              `mapstructure:"show_line"`
	Console        bool              `mapstructure:"console"`
}

type ControllerSection struct {
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type EngineSection struct {
	LoadDelay time.Duration `mapstructure:"load_delay"`
	Seed      int64         `mapstructure:"seed"`
}

type DatasetSection struct {
	// Dir, when set, holds <name>.json files; otherwise datasets are generated.
	Dir     string  `mapstructure:"dir"`
	Samples int     `mapstructure:"samples"`
	Noise   float64 `mapstructure:"noise"`
	Seed    int64   `mapstructure:"seed"`
}

type ServerSection struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Mode           string   `mapstructure:"mode"`
}

type StoreSection struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type LocalConfig struct {
	Log        LogSection        `mapstructure:"log"`
	Controller ControllerSection `mapstructure:"controller"`
	Engine     EngineSection     `mapstructure:"engine"`
	Dataset    DatasetSection    `mapstructure:"dataset"`
	Server     ServerSection     `mapstructure:"server"`
	Store      StoreSection      `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.path", "./gradlab.log")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.rotation_max_age", 7)
	v.SetDefault("log.rotation_time", 24)
	v.SetDefault("log.rotation_size", 30)
	v.SetDefault("log.show_line", true)
	v.SetDefault("log.console", true)

	v.SetDefault("controller.max_retries", controller.DefaultMaxRetries)
	v.SetDefault("controller.retry_delay", controller.DefaultRetryDelay)

	v.SetDefault("engine.load_delay", 2*time.Second)
	v.SetDefault("engine.seed", 1)

	v.SetDefault("dataset.dir", "")
	v.SetDefault("dataset.samples", 500)
	v.SetDefault("dataset.noise", 0.1)
	v.SetDefault("dataset.seed", 1)

	v.SetDefault("server.listen_addr", defaultAddr)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.mode", "release")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "./gradlab.db")
	v.SetDefault("store.in_memory", false)
}

// InitLocalConfig reads the file named by the command's config flag. If the
// flag is empty it looks for gradlab_config.yaml under GRADLAB_CFG_PATH; a
// missing file there is not an error and defaults apply.
func InitLocalConfig(cmd *cobra.Command) (*LocalConfig, error) {
	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		return nil, errors.Errorf("command %s has no config flag", cmd.Name())
	}
	return Load(flag.Value.String())
}

func Load(cfgFile string) (*LocalConfig, error) {
	// a .env next to the binary may carry GRADLAB_* overrides
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		altPath := os.Getenv(EnvCfgPath)
		if altPath == "" {
			altPath = "."
		}
		v.AddConfigPath(altPath)
		v.SetConfigName(ConfigName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	lc := &LocalConfig{}
	if err := v.Unmarshal(lc); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return lc, nil
}

func (c *LocalConfig) LogConfig() (*common.LogConfig, error) {
	lc := &common.LogConfig{
		BriefMode:      strings.ToUpper(c.Log.BriefMode),
		LogPath:        c.Log.Path,
		RotationMaxAge: c.Log.RotationMaxAge,
		RotationTime:   c.Log.RotationTime,
		RotationSize:   c.Log.RotationSize,
		ShowLine:       c.Log.ShowLine,
		LogInConsole:   c.Log.Console,
	}
	if lc.BriefMode != "" && lc.BriefMode != common.LOG_MODE_DEV && lc.BriefMode != common.LOG_MODE_PROD {
		return nil, errors.Errorf("unknown log brief mode %q", c.Log.BriefMode)
	}
	lvl, ok := common.LOG_LEVEL_Value[strings.ToUpper(c.Log.Level)]
	if !ok {
		return nil, errors.Errorf("unknown log level %q", c.Log.Level)
	}
	lc.LogLevel = lvl
	if len(c.Log.ModuleLevel) > 0 {
		lc.ModuleSpecialLevel = make(map[string]common.LOG_LEVEL, len(c.Log.ModuleLevel))
		for module, name := range c.Log.ModuleLevel {
			lvl, ok := common.LOG_LEVEL_Value[strings.ToUpper(name)]
			if !ok {
				return nil, errors.Errorf("unknown log level %q for module %s", name, module)
			}
			m, ok := common.ModuleByName(module)
			if !ok {
				return nil, errors.Errorf("unknown log module %q", module)
			}
			lc.ModuleSpecialLevel[m] = lvl
		}
	}
	return lc, nil
}

func (c *LocalConfig) ControllerConfig() (*controller.Config, error) {
	if c.Controller.MaxRetries < 0 {
		return nil, errors.Errorf("controller.max_retries must not be negative, got %d", c.Controller.MaxRetries)
	}
	if c.Controller.RetryDelay < 0 {
		return nil, errors.Errorf("controller.retry_delay must not be negative, got %s", c.Controller.RetryDelay)
	}
	return &controller.Config{
		MaxRetries: c.Controller.MaxRetries,
		RetryDelay: c.Controller.RetryDelay,
	}, nil
}

func (c *LocalConfig) EngineLoader() engine.Loader {
	return engine.NewMLPLoader(c.Engine.LoadDelay, c.Engine.Seed)
}

func (c *LocalConfig) DatasetSource() (dataset.Source, error) {
	if c.Dataset.Dir != "" {
		return &dataset.FileSource{Dir: c.Dataset.Dir}, nil
	}
	if c.Dataset.Samples <= 0 {
		return nil, errors.Errorf("dataset.samples must be positive, got %d", c.Dataset.Samples)
	}
	return dataset.NewGeneratedSource(c.Dataset.Samples, c.Dataset.Noise, c.Dataset.Seed), nil
}

func (c *LocalConfig) ServerConfig() (*server.Config, error) {
	if c.Server.ListenAddr == "" {
		return nil, errors.New("server.listen_addr is empty")
	}
	return &server.Config{
		ListenAddr:     c.Server.ListenAddr,
		AllowedOrigins: c.Server.AllowedOrigins,
		Mode:           c.Server.Mode,
	}, nil
}

// StoreConfig returns nil when run history is disabled.
func (c *LocalConfig) StoreConfig() *store.Config {
	if !c.Store.Enabled {
		return nil
	}
	return &store.Config{Path: c.Store.Path, InMemory: c.Store.InMemory}
}
