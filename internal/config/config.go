// Package config loads the protocol tunables from a YAML file with
// environment override, the way Vigneshboobathy-dag_rte's cmd/main.go and
// scionproto-scion's config packages load theirs via spf13/viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"vanet-secure-routing/internal/vanet"
)

// Config is the top-level file this process reads; Routing holds every
// tunable named in the specification.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Routing  RoutingBlock `mapstructure:"routing"`
}

// RoutingBlock mirrors vanet.Tunables in viper-friendly units (durations
// as milliseconds/seconds, since YAML has no native time.Duration).
type RoutingBlock struct {
	MessageTimeoutMS    int64   `mapstructure:"message_timeout_ms"`
	MaxMessageHistory   int     `mapstructure:"max_message_history"`
	MaxCertChainLen     int     `mapstructure:"max_cert_chain_len"`
	NeighborTimeoutS    int64   `mapstructure:"neighbor_timeout_s"`
	RouteTimeoutS       int64   `mapstructure:"route_timeout_s"`
	MaxHopCount         int     `mapstructure:"max_hop_count"`
	TrustThreshold      float64 `mapstructure:"trust_threshold"`
	TrustAlpha          float64 `mapstructure:"trust_alpha"`
	MaxSpeedKMH         float64 `mapstructure:"max_speed_kmh"`
	MaxAccelerationMS2  float64 `mapstructure:"max_acceleration_ms2"`
	BlackHoleK          int     `mapstructure:"black_hole_k"`
	BlackHoleWindowS    int64   `mapstructure:"black_hole_window_s"`
	BlackHoleMinForward float64 `mapstructure:"black_hole_min_forwarding_ratio"`
	SybilEpsilonM       float64 `mapstructure:"sybil_epsilon_m"`
	TickIntervalMS      int64   `mapstructure:"tick_interval_ms"`
	MaxRREQRetries      int     `mapstructure:"max_rreq_retries"`
	RREQRetryIntervalMS int64   `mapstructure:"rreq_retry_interval_ms"`
}

// Load reads configPath (if non-empty) and env vars prefixed VANET_,
// falling back to the specification's defaults for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VANET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := vanet.DefaultTunables()
	v.SetDefault("log_level", "info")
	v.SetDefault("routing.message_timeout_ms", d.MessageTimeout.Milliseconds())
	v.SetDefault("routing.max_message_history", d.MaxMessageHist)
	v.SetDefault("routing.max_cert_chain_len", d.MaxCertChainLen)
	v.SetDefault("routing.neighbor_timeout_s", int64(d.NeighborTimeout.Seconds()))
	v.SetDefault("routing.route_timeout_s", int64(d.RouteTimeout.Seconds()))
	v.SetDefault("routing.max_hop_count", d.MaxHopCount)
	v.SetDefault("routing.trust_threshold", d.TrustThreshold)
	v.SetDefault("routing.trust_alpha", d.TrustAlpha)
	v.SetDefault("routing.max_speed_kmh", d.MaxSpeedKMH)
	v.SetDefault("routing.max_acceleration_ms2", d.MaxAccelMS2)
	v.SetDefault("routing.black_hole_k", d.BlackHoleK)
	v.SetDefault("routing.black_hole_window_s", int64(d.BlackHoleWindow.Seconds()))
	v.SetDefault("routing.black_hole_min_forwarding_ratio", d.BlackHoleMinFwd)
	v.SetDefault("routing.sybil_epsilon_m", d.SybilEpsilonM)
	v.SetDefault("routing.tick_interval_ms", d.TickInterval.Milliseconds())
	v.SetDefault("routing.max_rreq_retries", d.MaxRREQRetries)
	v.SetDefault("routing.rreq_retry_interval_ms", d.RREQRetryInterval.Milliseconds())
}

// Tunables converts the loaded config block into vanet.Tunables.
func (c *Config) Tunables() vanet.Tunables {
	r := c.Routing
	return vanet.Tunables{
		MessageTimeout:    time.Duration(r.MessageTimeoutMS) * time.Millisecond,
		MaxMessageHist:    r.MaxMessageHistory,
		MaxCertChainLen:   r.MaxCertChainLen,
		NeighborTimeout:   time.Duration(r.NeighborTimeoutS) * time.Second,
		RouteTimeout:      time.Duration(r.RouteTimeoutS) * time.Second,
		MaxHopCount:       r.MaxHopCount,
		TrustThreshold:    r.TrustThreshold,
		TrustAlpha:        r.TrustAlpha,
		MaxSpeedKMH:       r.MaxSpeedKMH,
		MaxAccelMS2:       r.MaxAccelerationMS2,
		BlackHoleK:        r.BlackHoleK,
		BlackHoleWindow:   time.Duration(r.BlackHoleWindowS) * time.Second,
		BlackHoleMinFwd:   r.BlackHoleMinForward,
		SybilEpsilonM:     r.SybilEpsilonM,
		TickInterval:      time.Duration(r.TickIntervalMS) * time.Millisecond,
		MaxRREQRetries:    r.MaxRREQRetries,
		RREQRetryInterval: time.Duration(r.RREQRetryIntervalMS) * time.Millisecond,
	}
}
