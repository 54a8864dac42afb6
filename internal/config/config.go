package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"github.com/unchained-capital/connect/internal/core/domain"
)

const (
	// EndpointsKey is the key to set the ordered list of backend endpoints
	// to connect to.
	EndpointsKey = "ENDPOINTS"
	// NetworkKey is the key to explicitly set the network served by the
	// backend instead of resolving it by genesis block hash.
	NetworkKey = "NETWORK"
	// GapLimitKey is the key to customize the unused-address gap limit of
	// account discovery.
	GapLimitKey = "GAP_LIMIT"
	// LogLevelKey is the key to customize the log level to catch more
	// specific or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// RequestsPerSecondKey is the key to customize the rate limit applied
	// to backend requests.
	RequestsPerSecondKey = "REQUESTS_PER_SECOND"
	// RequestTimeoutKey is the key to customize the backend request timeout
	// in seconds.
	RequestTimeoutKey = "REQUEST_TIMEOUT_IN_SECONDS"
	// PollIntervalKey is the key to customize the chain-tip polling
	// interval of account activity monitoring, in seconds.
	PollIntervalKey = "POLL_INTERVAL_IN_SECONDS"
)

var (
	vip *viper.Viper

	defaultLogLevel          = 4
	defaultGapLimit          = 20
	defaultRequestsPerSecond = 10
	defaultRequestTimeout    = 15
	defaultPollInterval      = 10
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("CONNECT")
	vip.AutomaticEnv()

	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(GapLimitKey, defaultGapLimit)
	vip.SetDefault(RequestsPerSecondKey, defaultRequestsPerSecond)
	vip.SetDefault(RequestTimeoutKey, defaultRequestTimeout)
	vip.SetDefault(PollIntervalKey, defaultPollInterval)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}
}

func validate() error {
	for _, addr := range GetStringSlice(EndpointsKey) {
		if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
			return fmt.Errorf("invalid endpoint %s: unknown protocol", addr)
		}
	}

	if net := GetString(NetworkKey); len(net) > 0 {
		if domain.NetworkByName(net) == nil {
			return fmt.Errorf("unknown network %s", net)
		}
	}

	if gapLimit := GetInt(GapLimitKey); gapLimit <= 0 {
		return fmt.Errorf("gap limit must be a positive number")
	}

	return nil
}

// GetNetwork returns the configured network descriptor, nil if none is set
// so that it can be resolved by genesis block hash.
func GetNetwork() *domain.NetworkDescriptor {
	net := GetString(NetworkKey)
	if len(net) == 0 {
		return nil
	}
	return domain.NetworkByName(net)
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}
