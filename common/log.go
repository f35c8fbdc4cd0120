package common

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LOG_LEVEL is the internal log level, read from config by name.
type LOG_LEVEL int

const (
	LEVEL_DEBUG LOG_LEVEL = iota
	LEVEL_INFO
	LEVEL_WARN
	LEVEL_ERROR
)

var (
	LOG_LEVEL_Name = map[LOG_LEVEL]string{
		0: "DEBUG",
		1: "INFO",
		2: "WARN",
		3: "ERROR",
	}
	LOG_LEVEL_Value = map[string]LOG_LEVEL{
		"DEBUG": 0,
		"INFO":  1,
		"WARN":  2,
		"ERROR": 3,
	}
)

// brief modes
const (
	LOG_MODE_DEV  = "DEV"
	LOG_MODE_PROD = "PROD"
)

type LogConfig struct {
	BriefMode          string
	ModuleSpecialLevel map[string]LOG_LEVEL // per module override

	LogPath        string
	LogLevel       LOG_LEVEL
	RotationMaxAge int // days
	RotationTime   int // hours
	RotationSize   int // MB
	ShowLine       bool
	LogInConsole   bool
}

// DefaultLogConfig is used when nothing was set before the first GetLogger.
func DefaultLogConfig(isDEV bool) *LogConfig {
	if isDEV {
		return defaultBriefLogConfigForDEV()
	}

	return defaultBriefLogConfigForPROD()
}

func defaultBriefLogConfigForDEV() *LogConfig {
	return &LogConfig{
		LogPath:        "./gradlab.dev.log",
		LogLevel:       LEVEL_DEBUG,
		RotationMaxAge: 1,
		RotationTime:   1,
		RotationSize:   10,
		ShowLine:       true,
		LogInConsole:   true,
	}
}

func defaultBriefLogConfigForPROD() *LogConfig {
	return &LogConfig{
		LogPath:        "./gradlab.prod.log",
		LogLevel:       LEVEL_INFO,
		RotationMaxAge: 7,
		RotationTime:   24,
		RotationSize:   30,
		ShowLine:       true,
		LogInConsole:   false,
	}
}

// ParseLogLevel maps a level name to LOG_LEVEL, falling back to INFO.
func ParseLogLevel(name string) LOG_LEVEL {
	if lvl, ok := LOG_LEVEL_Value[name]; ok {
		return lvl
	}
	return LEVEL_INFO
}

func adjustLogConfig(name string, lc *LogConfig) *LogConfig {
	if lc.BriefMode != "" {
		return DefaultLogConfig(lc.BriefMode != LOG_MODE_PROD)
	}

	newC := &LogConfig{}
	lvl, ok := lc.ModuleSpecialLevel[name]
	if !ok {
		lvl = lc.LogLevel
	}
	newC.LogLevel = lvl
	newC.LogPath = lc.LogPath
	newC.LogInConsole = lc.LogInConsole
	newC.ShowLine = lc.ShowLine
	newC.RotationSize = lc.RotationSize
	newC.RotationTime = lc.RotationTime
	newC.RotationMaxAge = lc.RotationMaxAge

	return newC
}

func zapLevelOf(lvl LOG_LEVEL) zapcore.Level {
	switch lvl {
	case LEVEL_DEBUG:
		return zap.DebugLevel
	case LEVEL_INFO:
		return zap.InfoLevel
	case LEVEL_WARN:
		return zap.WarnLevel
	case LEVEL_ERROR:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func NewSugaredLogger(name string, lc *LogConfig) *zap.SugaredLogger {
	lcc := adjustLogConfig(name, lc)
	zapLevel := zapLevelOf(lcc.LogLevel)
	priorityLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapLevel
	})

	var syncer zapcore.WriteSyncer
	if lcc.LogPath == "" {
		syncer = zapcore.AddSync(os.Stdout)
	} else {
		rotationWriter, err := rotatelogs.New(
			lcc.LogPath+".%Y%m%d%H",
			rotatelogs.WithRotationTime(time.Duration(lcc.RotationTime)*time.Hour),
			rotatelogs.WithRotationSize(int64(lcc.RotationSize*1024*1024)),
			rotatelogs.WithMaxAge(time.Hour*24*time.Duration(lcc.RotationMaxAge)),
		)
		if err != nil {
			log.Fatalf("new rotation log failed, %s", err)
		}
		if lcc.LogInConsole {
			syncer = zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout), zapcore.AddSync(rotationWriter))
		} else {
			syncer = zapcore.AddSync(rotationWriter)
		}
	}

	customLevelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	customTimeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), syncer, priorityLevel)
	logger := zap.New(core).Named(name)
	defer logger.Sync()

	var opts []zap.Option
	if lcc.ShowLine {
		opts = append(opts, zap.AddCaller())
	}
	// GradLogger wraps every call, skip one frame
	opts = append(opts, zap.AddCallerSkip(1))
	logger = logger.WithOptions(opts...)

	return logger.Sugar()
}

const (
	MODULE_ENGINE     = "[Engine]"
	MODULE_SESSION    = "[Session]"
	MODULE_CONTROLLER = "[Controller]"
	MODULE_DATASET    = "[Dataset]"
	MODULE_STORE      = "[Store]"
	MODULE_SERVER     = "[Server]"
	MODULE_CLI        = "[CLI]"
)

var Modules = []string{MODULE_ENGINE, MODULE_SESSION, MODULE_CONTROLLER, MODULE_DATASET, MODULE_STORE, MODULE_SERVER, MODULE_CLI}

// ModuleByName finds a module by its bare name, ignoring case: "engine" is MODULE_ENGINE.
func ModuleByName(name string) (string, bool) {
	for _, m := range Modules {
		if strings.EqualFold(strings.Trim(m, "[]"), strings.Trim(name, "[]")) {
			return m, true
		}
	}
	return "", false
}

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

type GradLogger struct {
	zlog  *zap.SugaredLogger
	name  string
	mutex sync.RWMutex
}

func (l *GradLogger) Logger() *zap.SugaredLogger {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.zlog
}

func (l *GradLogger) Debug(args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Debug(args...)
}

func (l *GradLogger) Debugf(format string, args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Debugf(format, args...)
}

func (l *GradLogger) Error(args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Error(args...)
}

func (l *GradLogger) Errorf(format string, args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Errorf(format, args...)
}

func (l *GradLogger) Fatal(args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Fatal(args...)
}

func (l *GradLogger) Fatalf(format string, args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Fatalf(format, args...)
}

func (l *GradLogger) Info(args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Info(args...)
}

func (l *GradLogger) Infof(format string, args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Infof(format, args...)
}

func (l *GradLogger) Warn(args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Warn(args...)
}

func (l *GradLogger) Warnf(format string, args ...interface{}) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	l.zlog.Warnf(format, args...)
}

func (l *GradLogger) SetLogger(logger *zap.SugaredLogger) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.zlog = logger
}

var (
	gradLoggersMap = make(map[string]*GradLogger)
	loggerMutex    sync.RWMutex
	gradLogConfig  *LogConfig
)

func GetLogger(name string) *GradLogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if logger, ok := gradLoggersMap[name]; ok {
		return logger
	}

	if gradLogConfig == nil {
		gradLogConfig = DefaultLogConfig(true)
	}

	logger := &GradLogger{
		name: name,
		zlog: NewSugaredLogger(name, gradLogConfig),
	}
	gradLoggersMap[name] = logger

	return logger
}

// SetLogConfig should run before the first GetLogger; loggers handed out
// earlier are rebuilt in place.
func SetLogConfig(config *LogConfig) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	gradLogConfig = config
	for _, logger := range gradLoggersMap {
		logger.SetLogger(NewSugaredLogger(logger.name, gradLogConfig))
	}
}
