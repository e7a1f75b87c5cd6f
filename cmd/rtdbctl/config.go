package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/firebase/rtdb-go/pkg/auth"
	"github.com/firebase/rtdb-go/rtdb"
)

// fileConfig is the YAML shape accepted by --config, for callers who'd
// rather check in a config file than repeat --namespace/--credential-file
// on every invocation.
type fileConfig struct {
	Namespace      string `yaml:"namespace"`
	CredentialFile string `yaml:"credentialFile"`
	RequestTimeout string `yaml:"requestTimeout"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %v", err)
	}
	return cfg, nil
}

// newClient builds an rtdb.Client from the root command's persistent
// flags, layering --config under any flag explicitly set on the command
// line. It connects before returning, so every subcommand gets a live
// socket without repeating the dial boilerplate.
func newClient(cmd *cobra.Command, ctx context.Context) (*rtdb.Client, error) {
	configPath, _ := cmd.Flags().GetString("config")
	fileCfg, err := loadFileConfig(configPath)
	if err != nil {
		return nil, err
	}

	namespace, _ := cmd.Flags().GetString("namespace")
	if namespace == "" {
		namespace = fileCfg.Namespace
	}
	credFile, _ := cmd.Flags().GetString("credential-file")
	if credFile == "" {
		credFile = fileCfg.CredentialFile
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 && fileCfg.RequestTimeout != "" {
		timeout, _ = time.ParseDuration(fileCfg.RequestTimeout)
	}

	if namespace == "" {
		return nil, fmt.Errorf("--namespace (or config.namespace) is required")
	}

	cred, err := credentialProvider(credFile)
	if err != nil {
		return nil, err
	}

	client, err := rtdb.NewClient(rtdb.Config{
		Namespace:      namespace,
		Credential:     cred,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build client: %v", err)
	}

	client.Connect(ctx)
	return client, nil
}

// credentialProvider reads a bearer token from credFile, or falls back to
// the emulator bypass if FIREBASE_DATABASE_EMULATOR_HOST is set and no
// file was given.
func credentialProvider(credFile string) (auth.TokenProvider, error) {
	if credFile == "" {
		if _, ok := auth.EmulatorHost(); ok {
			return auth.EmulatorProvider(), nil
		}
		return nil, fmt.Errorf("--credential-file (or config.credentialFile) is required outside emulator mode")
	}
	data, err := os.ReadFile(credFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %v", err)
	}
	return auth.StaticTokenProvider(strings.TrimSpace(string(data))), nil
}
