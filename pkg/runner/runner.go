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

// Package runner wires configuration, logging and tracing together and
// drives the built-in smoke scenario, the quick answer to "does this
// cloud basically work".
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unikorn-cloud/conformance/pkg/config"
	"github.com/unikorn-cloud/conformance/pkg/fixture"
	"github.com/unikorn-cloud/conformance/pkg/openstack"
)

// Options come from the command line, everything else from the config
// file.
type Options struct {
	// ConfigFile points at the harness YAML configuration.
	ConfigFile string
	// OTLPEndpoint, when set, ships API call spans to a collector.
	OTLPEndpoint string
	// Verbosity raises log verbosity, 0 being production quiet.
	Verbosity int
}

func (o *Options) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.ConfigFile, "config", "", "Path to the harness configuration file.")
	flags.StringVar(&o.OTLPEndpoint, "otlp-endpoint", "", "OTLP HTTP endpoint to ship trace spans to.")
	flags.IntVarP(&o.Verbosity, "verbosity", "v", 0, "Log verbosity level.")
}

// SetupLogging installs a zap backed logr logger.
func (o *Options) SetupLogging() logr.Logger {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.Level(-o.Verbosity)) //nolint:gosec

	logger, err := zapConfig.Build()
	if err != nil {
		// Logging is not optional.
		panic(err)
	}

	return zapr.NewLogger(logger)
}

// SetupOpenTelemetry installs a tracer provider, exporting when an OTLP
// endpoint is configured and no-oping otherwise.
func (o *Options) SetupOpenTelemetry(ctx context.Context) (func(context.Context) error, error) {
	if o.OTLPEndpoint == "" {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())

		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(o.OTLPEndpoint))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))

	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Run executes the smoke scenario: boot a guest on a fresh tenant
// network, give it a floating IP, prove we can ping and SSH it, attach
// a volume when there's a volume service, then tear the lot down.
func Run(ctx context.Context, options *Options) error {
	log := options.SetupLogging()

	shutdown, err := options.SetupOpenTelemetry(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error(err, "trace shutdown failed")
		}
	}()

	cfg, err := config.Load(options.ConfigFile)
	if err != nil {
		return err
	}

	provider := openstack.NewCloudProvider(cfg.Cloud)

	clients, err := fixture.NewClients(ctx, provider, cfg)
	if err != nil {
		return err
	}

	// Resolve the token scope up front, both to fail fast on unscoped
	// credentials and so leaked resources are attributable to a project.
	project, err := clients.Identity.TokenProject(ctx)
	if err != nil {
		return err
	}

	log.Info("authenticated", "project", project.Name, "projectID", project.ID)

	scenario := fixture.NewScenario("smoke", cfg, clients, log)

	err = smoke(ctx, scenario, log)

	// Teardown runs regardless, and its failures matter just as much.
	if teardownErr := scenario.Teardown(ctx); teardownErr != nil {
		err = errors.Join(err, teardownErr)
	}

	if err != nil {
		log.Error(err, "smoke scenario failed")
		return err
	}

	log.Info("smoke scenario passed")

	return nil
}

func smoke(ctx context.Context, s *fixture.Scenario, log logr.Logger) error {
	if s.Clients.Network == nil {
		return errors.New("smoke scenario requires the network service")
	}

	keypair, err := s.CreateKeypair(ctx)
	if err != nil {
		return fmt.Errorf("keypair: %w", err)
	}

	tenant, err := s.CreateTenantNetwork(ctx)
	if err != nil {
		return fmt.Errorf("tenant network: %w", err)
	}

	group, err := s.CreateLoginableSecurityGroup(ctx)
	if err != nil {
		return fmt.Errorf("security group: %w", err)
	}

	server, err := s.CreateServer(ctx, &fixture.ServerOpts{
		KeyName:        keypair.Name,
		Networks:       tenant.Network.ServerNetworks(),
		SecurityGroups: []string{group.Name},
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	log.Info("server active", "id", server.ID)

	port, err := s.ServerPort(ctx, server, tenant.Network)
	if err != nil {
		return fmt.Errorf("server port: %w", err)
	}

	fip, err := s.CreateFloatingIP(ctx, port.ID)
	if err != nil {
		return fmt.Errorf("floating IP: %w", err)
	}

	log.Info("floating IP associated", "address", fip.FloatingIP.FloatingIP)

	check := &fixture.ConnectivityCheck{
		Address:       fip.FloatingIP.FloatingIP,
		ShouldConnect: true,
		Keypair:       keypair,
		Server:        server,
	}

	if err := s.CheckVMConnectivity(ctx, check); err != nil {
		return fmt.Errorf("connectivity: %w", err)
	}

	if s.Clients.BlockStorage != nil {
		volume, err := s.CreateVolume(ctx, nil)
		if err != nil {
			return fmt.Errorf("volume: %w", err)
		}

		if err := s.AttachVolume(ctx, server, volume); err != nil {
			return fmt.Errorf("volume attach: %w", err)
		}

		log.Info("volume attached", "id", volume.ID)
	}

	return nil
}
