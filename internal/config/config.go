package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds the streaming backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// SettleConfig holds the settling procedure tuning
type SettleConfig struct {
	DropHeight       float64
	InitialWait      time.Duration
	SecondWait       time.Duration
	ExtendedWait     time.Duration
	LinearThreshold  float64
	AngularThreshold float64
}

// EvaluatorConfig holds the relocation success tolerances
type EvaluatorConfig struct {
	HeightDropLimit   float64
	MovedFraction     float64
	NearTargetPadding float64
	ClosestTolerance  float64
}

// GraspConfig holds the grasp success tuning
type GraspConfig struct {
	ConsecutiveSteps int
	MinImpulse       float64
	SignificantLift  float64
	RequireLifting   bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./taskenvlogs")
	viper.SetDefault("assetRoot", "./assets")
	viper.SetDefault("modelCatalogue", "./assets/model_db.json")

	viper.SetDefault("table.height", 0.85)
	viper.SetDefault("scene.builder", "mesh")
	viper.SetDefault("robot.uid", "google_robot_static")

	viper.SetDefault("settle.dropHeight", 0.5)
	viper.SetDefault("settle.initialWait", "500ms")
	viper.SetDefault("settle.secondWait", "500ms")
	viper.SetDefault("settle.extendedWait", "1500ms")
	viper.SetDefault("settle.linearThreshold", 1e-3)
	viper.SetDefault("settle.angularThreshold", 1e-2)

	viper.SetDefault("evaluator.heightDropLimit", 0.02)
	viper.SetDefault("evaluator.movedFraction", 0.5)
	viper.SetDefault("evaluator.nearTargetPadding", 0.04)
	viper.SetDefault("evaluator.closestTolerance", 0.03)

	viper.SetDefault("grasp.consecutiveSteps", 5)
	viper.SetDefault("grasp.minImpulse", 1e-6)
	viper.SetDefault("grasp.significantLift", 0.02)
	viper.SetDefault("grasp.requireLifting", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "taskenv-metrics")
	viper.SetDefault("influx.bucket", "episodes")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "taskenv")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("taskenv.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB telemetry configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetSettleConfig returns the settling procedure configuration.
func GetSettleConfig() SettleConfig {
	return SettleConfig{
		DropHeight:       viper.GetFloat64("settle.dropHeight"),
		InitialWait:      viper.GetDuration("settle.initialWait"),
		SecondWait:       viper.GetDuration("settle.secondWait"),
		ExtendedWait:     viper.GetDuration("settle.extendedWait"),
		LinearThreshold:  viper.GetFloat64("settle.linearThreshold"),
		AngularThreshold: viper.GetFloat64("settle.angularThreshold"),
	}
}

// GetEvaluatorConfig returns the relocation evaluator tolerances.
func GetEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		HeightDropLimit:   viper.GetFloat64("evaluator.heightDropLimit"),
		MovedFraction:     viper.GetFloat64("evaluator.movedFraction"),
		NearTargetPadding: viper.GetFloat64("evaluator.nearTargetPadding"),
		ClosestTolerance:  viper.GetFloat64("evaluator.closestTolerance"),
	}
}

// GetGraspConfig returns the grasp evaluator tuning.
func GetGraspConfig() GraspConfig {
	return GraspConfig{
		ConsecutiveSteps: viper.GetInt("grasp.consecutiveSteps"),
		MinImpulse:       viper.GetFloat64("grasp.minImpulse"),
		SignificantLift:  viper.GetFloat64("grasp.significantLift"),
		RequireLifting:   viper.GetBool("grasp.requireLifting"),
	}
}
