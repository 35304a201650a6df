package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Base: config.ProviderConfig{
			ID: "base", Name: "Data Commons", SiteURL: "http://127.0.0.1:1", APIURL: "http://127.0.0.1:1", SearchIndex: "idx",
		},
		Custom: []config.ProviderConfig{
			{ID: "c0", Name: "Custom DC", SiteURL: "http://127.0.0.1:2", APIURL: "http://127.0.0.1:2/core/api", SearchIndex: "idx"},
			{ID: "c1", Name: "Custom DC", SiteURL: "http://127.0.0.1:3", APIURL: "http://127.0.0.1:3/core/api", SearchIndex: "idx"},
		},
		HTTP:       config.HTTPConfig{Timeout: time.Second, MaxRetries: 0},
		Federation: config.FederationConfig{ProviderTimeout: time.Second},
		Server:     config.ServerConfig{Host: "localhost", Port: 8080},
		Scheduler:  config.SchedulerConfig{RefreshInterval: time.Hour},
		Store:      config.StoreConfig{MaxEntries: 10, MaxAge: time.Hour},
	}
}

func TestBuildComponents(t *testing.T) {
	comps, err := buildComponents(testConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0.80, comps.service.Threshold())
	providers := comps.service.Providers()
	require.Len(t, providers, 3)
	assert.Equal(t, "base", providers[0].ID)
	assert.Equal(t, "c1", providers[2].ID)
	assert.NotNil(t, comps.scheduler)
}

func TestListenAddrFlagsOverrideConfig(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = testConfig()

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&serveHost, "host", "localhost", "")
	cmd.Flags().IntVar(&servePort, "port", 8080, "")

	assert.Equal(t, "localhost:8080", listenAddr(cmd))

	require.NoError(t, cmd.Flags().Set("port", "9090"))
	require.NoError(t, cmd.Flags().Set("host", "0.0.0.0"))
	assert.Equal(t, "0.0.0.0:9090", listenAddr(cmd))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, version+"\n", out.String())
}

func TestWaitAndShutdownReturnsListenError(t *testing.T) {
	listenErr := make(chan error, 1)
	listenErr <- errors.New("address already in use")

	called := false
	done := make(chan error, 1)
	go func() {
		done <- waitAndShutdown(zap.NewNop(), listenErr, func(context.Context) error {
			called = true
			return nil
		})
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "address already in use")
		assert.False(t, called)
	case <-time.After(2 * time.Second):
		t.Fatal("waitAndShutdown did not return after listener failure")
	}
}
