// reachy-voice lets a Reachy Mini hold spoken conversations.
//
// It captures the robot's microphone, gates it into utterances, transcribes
// them, asks a chat model for a reply, speaks the reply through the robot and
// remembers who it was talking to by face.
//
// Usage:
//
//	ROBOT_IP=192.168.1.171 OPENAI_API_KEY=sk-... reachy-voice run
//	reachy-voice enroll --name alice --samples 3
//	reachy-voice users list
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/internal/config"
	"github.com/teslashibe/reachy-voice/internal/log"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "reachy-voice",
	Short: "Voice turn-taking and face identity for Reachy Mini",
	Long: `reachy-voice runs the robot's conversation loop: energy-gated utterance
capture, speech-to-text, chat with tools and per-user memory, text-to-speech
playback, and face-embedding user identification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.reachy/voice.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd, enrollCmd, usersCmd)
}

// loadConfig reads the config and initializes the global logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Init(cfg.LogLevel)
	return cfg, log.L(), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
