package config

// Package config provides a reusable loader for NOVA configuration files
// and environment variables, following the teacher's viper-based loader
// shape (pkg/config/config.go in orbas1-Synnergy).
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"nova.dev/core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration surface for a NOVA node, covering
// exactly the sections spec §6 enumerates: Consensus, Mempool and Loop,
// plus the ambient Storage/Logging sections every deployment needs.
type Config struct {
	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`

	Consensus struct {
		BlockTimeMS          int   `mapstructure:"block_time_ms" json:"block_time_ms"`
		MinValidators        int   `mapstructure:"min_validators" json:"min_validators"`
		MaxValidators        int   `mapstructure:"max_validators" json:"max_validators"`
		StakeRequirement     int64 `mapstructure:"stake_requirement" json:"stake_requirement"`
		EpochLength          int64 `mapstructure:"epoch_length" json:"epoch_length"`
		MaxBlockTransactions int   `mapstructure:"max_block_transactions" json:"max_block_transactions"`
		RoundTimeoutMS       int   `mapstructure:"round_timeout_ms" json:"round_timeout_ms"`
	} `mapstructure:"consensus" json:"consensus"`

	Mempool struct {
		MaxSize       int   `mapstructure:"max_size" json:"max_size"`
		MaxPerSender  int   `mapstructure:"max_per_sender" json:"max_per_sender"`
		ExpirySeconds int64 `mapstructure:"expiry_seconds" json:"expiry_seconds"`
		MinFee        int64 `mapstructure:"min_fee" json:"min_fee"`
	} `mapstructure:"mempool" json:"mempool"`

	Loop struct {
		BlockTimeMS           int   `mapstructure:"block_time_ms" json:"block_time_ms"`
		MaxTxsPerBlock        int   `mapstructure:"max_txs_per_block" json:"max_txs_per_block"`
		EmptyBlockDelayMS     int   `mapstructure:"empty_block_delay_ms" json:"empty_block_delay_ms"`
		MaxRoundsWithoutBlock int64 `mapstructure:"max_rounds_without_block" json:"max_rounds_without_block"`
	} `mapstructure:"loop" json:"loop"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/novad/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the NOVA_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("NOVA_ENV", ""))
}
