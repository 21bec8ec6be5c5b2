package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oneway",
	Short: "Oneway - 학습 증강 단방향 거래 엔진",
	Long: `Oneway Unified CLI

예측 오라클로 보강된 단방향 거래(one-way trading) 엔진.
임계값 기반 온라인 할당으로 자원을 가격 순서에 따라 전환.

Usage:
  go run ./cmd/oneway [command]

Examples:
  go run ./cmd/oneway fetch
  go run ./cmd/oneway backtest --from 2016-01-04 --to 2022-03-20
  go run ./cmd/oneway api
  go run ./cmd/oneway live --steps 168`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
