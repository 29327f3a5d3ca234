/*
Copyright 2025 the Unikorn Authors.
Copyright 2026 Nscale.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the harness configuration.  Scenarios treat the
// result as read only, the same file must be safe to share between
// parallel runs.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Services flags which optional cloud services the target deployment
// actually runs.  A disabled service skips its scenarios rather than
// failing them.
type Services struct {
	Network       bool `mapstructure:"network"`
	Volume        bool `mapstructure:"volume"`
	Baremetal     bool `mapstructure:"baremetal"`
	Orchestration bool `mapstructure:"orchestration"`
	ObjectStorage bool `mapstructure:"objectstorage"`
	LoadBalancer  bool `mapstructure:"loadbalancer"`
}

// Compute describes what to boot.
type Compute struct {
	// ImageRef is an image name or ID guests boot from.
	ImageRef string `mapstructure:"imageRef"`
	// FlavorRef is a flavor name or ID.
	FlavorRef string `mapstructure:"flavorRef"`
	// AvailabilityZone pins guests when set.
	AvailabilityZone string `mapstructure:"availabilityZone"`
	// VolumeSize is the size in GiB for scenario volumes.
	VolumeSize int `mapstructure:"volumeSize"`
}

// Network describes the tenant and provider networking to test against.
type Network struct {
	// ExternalNetworkRef names the floating IP network, empty picks the
	// first external network visible.
	ExternalNetworkRef string `mapstructure:"externalNetworkRef"`
	// TenantCIDR is the pool subnets are carved from.
	TenantCIDR string `mapstructure:"tenantCIDR"`
	// SubnetMaskBits is the prefix length of each carved subnet.
	SubnetMaskBits int `mapstructure:"subnetMaskBits"`
	// DNSNameservers are pushed into created subnets.
	DNSNameservers []string `mapstructure:"dnsNameservers"`
}

// SSH describes how to log into guests.
type SSH struct {
	// User must exist in the image, e.g. "ubuntu" or "cirros".
	User string `mapstructure:"user"`
}

// Timeouts bound every wait in the harness.  Intervals pace the polling.
type Timeouts struct {
	// Build bounds resource readiness, servers and volumes mostly.
	Build time.Duration `mapstructure:"build"`
	// BuildInterval paces readiness polling.
	BuildInterval time.Duration `mapstructure:"buildInterval"`
	// Ping bounds ICMP reachability.
	Ping time.Duration `mapstructure:"ping"`
	// PingInterval paces ping attempts.
	PingInterval time.Duration `mapstructure:"pingInterval"`
	// SSH bounds SSH connection establishment.
	SSH time.Duration `mapstructure:"ssh"`
	// Power bounds bare metal power state transitions.
	Power time.Duration `mapstructure:"power"`
	// Association bounds node to instance association.
	Association time.Duration `mapstructure:"association"`
	// Callback bounds the deploy ramp-up to wait call-back.
	Callback time.Duration `mapstructure:"callback"`
	// Unprovision bounds bare metal teardown.
	Unprovision time.Duration `mapstructure:"unprovision"`
}

// Config is the root of the harness configuration.
type Config struct {
	// Cloud names an entry in clouds.yaml.
	Cloud    string   `mapstructure:"cloud"`
	Services Services `mapstructure:"services"`
	Compute  Compute  `mapstructure:"compute"`
	Network  Network  `mapstructure:"network"`
	SSH      SSH      `mapstructure:"ssh"`
	Timeouts Timeouts `mapstructure:"timeouts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cloud", "conformance")

	v.SetDefault("services.network", true)
	v.SetDefault("services.volume", true)

	v.SetDefault("compute.volumeSize", 1)

	v.SetDefault("network.tenantCIDR", "10.100.0.0/16")
	v.SetDefault("network.subnetMaskBits", 28)

	v.SetDefault("ssh.user", "ubuntu")

	v.SetDefault("timeouts.build", 5*time.Minute)
	v.SetDefault("timeouts.buildInterval", 5*time.Second)
	v.SetDefault("timeouts.ping", 2*time.Minute)
	v.SetDefault("timeouts.pingInterval", 2*time.Second)
	v.SetDefault("timeouts.ssh", 2*time.Minute)
	v.SetDefault("timeouts.power", 5*time.Minute)
	v.SetDefault("timeouts.association", 2*time.Minute)
	v.SetDefault("timeouts.callback", 3*time.Minute)
	v.SetDefault("timeouts.unprovision", 10*time.Minute)
}

// Load reads the named YAML file, with CONFORMANCE_* environment
// variables taking precedence, and defaults below both.  An empty path
// falls back to conformance.yaml in the working directory when present.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("conformance")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("conformance")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		// Missing optional config just means defaults and environment.
		var notFound viper.ConfigFileNotFoundError

		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config := &Config{}

	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}
