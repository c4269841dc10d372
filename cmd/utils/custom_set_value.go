package utils

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/internal/cache"
	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
	"github.com/stellar/stellar-tenant-control-plane/internal/events"
	"github.com/stellar/stellar-tenant-control-plane/internal/monitor"
	"github.com/stellar/stellar-tenant-control-plane/internal/notification"
	internalUtils "github.com/stellar/stellar-tenant-control-plane/internal/utils"
)

// MinMasterKeyLength is the minimum size, in bytes, of the key the per-tenant envelope keys are derived from.
const MinMasterKeyLength = 32

// setParsedValue reads the option from viper, parses it and stores the result in the option's config key.
func setParsedValue[T any](co *config.ConfigOption, what string, parse func(string) (T, error)) error {
	key, ok := co.ConfigKey.(*T)
	if !ok {
		return fmt.Errorf("config key of %s has type %T, expected %T", co.Name, co.ConfigKey, key)
	}

	parsed, err := parse(viper.GetString(co.Name))
	if err != nil {
		return fmt.Errorf("couldn't parse %s: %w", what, err)
	}

	*key = parsed
	return nil
}

func SetConfigOptionNotifierType(co *config.ConfigOption) error {
	return setParsedValue(co, "notifier type", notification.ParseNotifierType)
}

func SetConfigOptionMetricType(co *config.ConfigOption) error {
	return setParsedValue(co, "metric type", monitor.ParseMetricType)
}

func SetConfigOptionCrashTrackerType(co *config.ConfigOption) error {
	return setParsedValue(co, "crash tracker type", crashtracker.ParseCrashTrackerType)
}

func SetConfigOptionEventBrokerType(co *config.ConfigOption) error {
	return setParsedValue(co, "event broker type", events.ParseEventBrokerType)
}

func SetConfigOptionCacheStoreType(co *config.ConfigOption) error {
	return setParsedValue(co, "cache store type", cache.ParseStoreType)
}

// SetConfigOptionLogLevel also applies an explicitly set level to the default logger, so the rest of the option
// parsing already logs at that level.
func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	if err := setParsedValue(co, "log level", logrus.ParseLevel); err != nil {
		return err
	}

	level := *co.ConfigKey.(*logrus.Level)
	if config.IsExplicitlySet(co) {
		log.DefaultLogger.SetLevel(level)
		log.Debugf("log level set to %q", level)
	}
	return nil
}

// SetConfigOptionMasterKey decodes a base64 master key and checks it is long enough to derive envelope keys from.
func SetConfigOptionMasterKey(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*[]byte)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a byte slice, but got a %T instead", co.ConfigKey)
	}

	encoded := strings.TrimSpace(viper.GetString(co.Name))
	if encoded == "" {
		return fmt.Errorf("master key cannot be empty")
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding master key: %w", err)
	}
	if len(decoded) < MinMasterKeyLength {
		return fmt.Errorf("master key must have at least %d bytes, got %d", MinMasterKeyLength, len(decoded))
	}

	*key = decoded
	return nil
}

// SetConfigOptionStringList splits a comma-separated value, dropping the empty entries.
func SetConfigOptionStringList(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}

	list := []string{}
	for _, item := range strings.Split(viper.GetString(co.Name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}

	*key = list
	return nil
}

// SetCorsAllowedOrigins parses a comma-separated list of origins. Each origin must be an absolute URL or "*".
func SetCorsAllowedOrigins(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		return fmt.Errorf("cors allowed origins cannot be empty")
	}

	origins := strings.Split(raw, ",")
	for _, origin := range origins {
		if origin == "*" {
			log.Warn(`CORS allows every origin ("*"), restrict it outside of development environments`)
			continue
		}
		if err := internalUtils.ValidateURL(origin); err != nil {
			return fmt.Errorf("invalid cors origin %q: %w", origin, err)
		}
	}

	*key = origins
	return nil
}

// SetConfigOptionURLString validates a URL option. An empty value is only accepted when the option is optional.
func SetConfigOptionURLString(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		if co.Required {
			return fmt.Errorf("%s cannot be empty", co.Name)
		}
		*key = ""
		return nil
	}

	if err := internalUtils.ValidateURL(raw); err != nil {
		return fmt.Errorf("invalid url in %s: %w", co.Name, err)
	}

	*key = raw
	return nil
}
