// Package config assembles node configuration from the environment, plus an
// optional YAML tuning file for the knobs that have sane defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Strategy names for predecessor discovery.
const (
	StrategyBaseline = "baseline"
	StrategyFrequent = "frequent"
)

// Tuning holds the optional knobs. Zero values select the defaults below.
type Tuning struct {
	// Strategy selects the predecessor discovery strategy.
	Strategy string `mapstructure:"strategy"`
	// ProbeFanout is how many of the historically most frequent
	// predecessors are probed before falling back to the full fleet.
	// 0 means "as many as there are activity nodes".
	ProbeFanout int `mapstructure:"probeFanout"`
	// RPCTimeout bounds every outbound node-to-node request.
	RPCTimeout time.Duration `mapstructure:"rpcTimeout"`
	// MetricFlush is the interval at which buffered metric lines are
	// forced to disk.
	MetricFlush time.Duration `mapstructure:"metricFlush"`
}

// Config is the resolved node configuration.
type Config struct {
	// ServerID indexes this node in ServerNames. The last entry of
	// ServerNames is the central node; every other entry is the activity
	// node owning that activity id.
	ServerID    int
	ServerNames []string
	// ActivityName is the activity this node senses (activity nodes only).
	ActivityName string
	// ActivityNames maps activity ids to names (central node only).
	ActivityNames map[int]string
	// FilePath is the event log path the fleet was launched for; only its
	// base name is used, to derive the metric file name.
	FilePath string
	// OutputDir receives the per-event metric file.
	OutputDir string
	// BasePort is the first port of the fleet; node i listens on
	// BasePort+i when its server name carries no explicit port.
	BasePort int

	Tuning Tuning
}

// FromEnv reads the standard environment variables and, when present, the
// tuning file named by CONFIG_PATH (default ./config.yaml).
func FromEnv() (*Config, error) {
	vp := viper.New()
	vp.AutomaticEnv()
	vp.SetDefault("BASE_SERVER_PORT", 7000)
	vp.SetDefault("OUTPUT_DIR", "outputs")
	vp.SetDefault("CONFIG_PATH", "config.yaml")

	names := splitNames(vp.GetString("SERVER_NAME_LIST"))
	if len(names) < 2 {
		return nil, fmt.Errorf("config: SERVER_NAME_LIST needs at least one activity node and the central node, got %q", vp.GetString("SERVER_NAME_LIST"))
	}

	id := vp.GetInt("SERVER_ID")
	if id < 0 || id >= len(names) {
		return nil, fmt.Errorf("config: SERVER_ID %d out of range for %d servers", id, len(names))
	}

	cfg := &Config{
		ServerID:     id,
		ServerNames:  names,
		ActivityName: vp.GetString("ACTIVITY_NAME"),
		FilePath:     vp.GetString("FILE_PATH"),
		OutputDir:    vp.GetString("OUTPUT_DIR"),
		BasePort:     vp.GetInt("BASE_SERVER_PORT"),
	}

	if mapping := vp.GetString("SERVER_ACTIVITY_MAPPING"); mapping != "" {
		parsed, err := parseActivityMapping(mapping)
		if err != nil {
			return nil, err
		}
		cfg.ActivityNames = parsed
	}

	tuning, err := tuningFromYaml(vp.GetString("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	cfg.Tuning = tuning

	return cfg, nil
}

// Dump renders the resolved configuration for the startup log.
func (c *Config) Dump() string {
	out, err := yaml.Marshal(map[string]interface{}{
		"serverId":    c.ServerID,
		"serverNames": c.ServerNames,
		"activity":    c.ActivityName,
		"central":     c.IsCentral(),
		"basePort":    c.BasePort,
		"strategy":    c.Tuning.Strategy,
		"probeFanout": c.Tuning.ProbeFanout,
		"rpcTimeout":  c.Tuning.RPCTimeout.String(),
		"metricFlush": c.Tuning.MetricFlush.String(),
	})
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}

// IsCentral reports whether this process plays the central node role.
func (c *Config) IsCentral() bool {
	return c.ServerID == len(c.ServerNames)-1
}

// ActivityCount is the number of activity nodes in the fleet.
func (c *Config) ActivityCount() int {
	return len(c.ServerNames) - 1
}

// Addr resolves the dial address of node id: the configured server name if it
// already carries a port, otherwise 127.0.0.1 with the fleet port scheme.
func (c *Config) Addr(id int) string {
	name := c.ServerNames[id]
	if strings.Contains(name, ":") {
		return name
	}
	return "127.0.0.1:" + strconv.Itoa(c.BasePort+id)
}

// ListenAddr is the bind address for this node.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.BasePort+c.ServerID)
}

// ActivityAddrs lists the dial addresses of all activity nodes, indexed by
// activity id.
func (c *Config) ActivityAddrs() []string {
	addrs := make([]string, c.ActivityCount())
	for i := range addrs {
		addrs[i] = c.Addr(i)
	}
	return addrs
}

// MetricPath derives the per-event metric file location from the event log
// name, e.g. FILE_PATH=logs/running_example.csv -> outputs/running_example_opt.csv.
func (c *Config) MetricPath() string {
	base := filepath.Base(c.FilePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.OutputDir, name+"_opt.csv")
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseActivityMapping(raw string) (map[int]string, error) {
	// The mapping arrives as a JSON-ish dict of id -> activity name with
	// string keys, e.g. {"0": "register", "1": "approve"}.
	var byKey map[string]string
	if err := json.Unmarshal([]byte(raw), &byKey); err != nil {
		return nil, fmt.Errorf("config: SERVER_ACTIVITY_MAPPING: %w", err)
	}
	out := make(map[int]string, len(byKey))
	for key, name := range byKey {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("config: SERVER_ACTIVITY_MAPPING key %q: %w", key, err)
		}
		out[id] = name
	}
	return out, nil
}

// tuningFromYaml loads the optional tuning file. A missing file is fine and
// yields pure defaults.
func tuningFromYaml(path string) (Tuning, error) {
	tuning := Tuning{
		Strategy:    StrategyFrequent,
		RPCTimeout:  time.Second,
		MetricFlush: time.Second,
	}

	if _, err := os.Stat(path); err != nil {
		return tuning, nil
	}

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	if err := vp.ReadInConfig(); err != nil {
		return tuning, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := vp.Unmarshal(&tuning); err != nil {
		return tuning, fmt.Errorf("config: parse %s: %w", path, err)
	}

	switch tuning.Strategy {
	case StrategyBaseline, StrategyFrequent:
	default:
		return tuning, fmt.Errorf("config: unknown strategy %q", tuning.Strategy)
	}
	if tuning.RPCTimeout <= 0 {
		tuning.RPCTimeout = time.Second
	}
	if tuning.MetricFlush <= 0 {
		tuning.MetricFlush = time.Second
	}
	return tuning, nil
}
