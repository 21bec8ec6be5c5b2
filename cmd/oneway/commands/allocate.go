package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/logger"
)

// allocateCmd represents the allocate command
var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "단일 에피소드 할당 실행",
	Long: `쉼표로 구분된 가격 수열 하나를 할당 엔진에 통과시킵니다.

전략을 빠르게 검증할 때 사용합니다. 에피소드 끝에서 남은 예산은
마지막 가격으로 강제 청산됩니다.

Example:
  go run ./cmd/oneway allocate --prices 5000,6200,8100,7400 --lower 5000 --upper 70000
  go run ./cmd/oneway allocate --prices 5000,9000 --lambda 0.5 --prediction 9500`,
	RunE: runAllocate,
}

var (
	allocatePrices     string
	allocateLower      float64
	allocateUpper      float64
	allocateLambda     float64
	allocatePrediction float64
)

func init() {
	rootCmd.AddCommand(allocateCmd)

	// Flags
	allocateCmd.Flags().StringVar(&allocatePrices, "prices", "", "가격 수열 (쉼표 구분, 필수)")
	allocateCmd.Flags().Float64Var(&allocateLower, "lower", 0, "최저 가격 L (기본: 환경변수)")
	allocateCmd.Flags().Float64Var(&allocateUpper, "upper", 0, "최고 가격 U (기본: 환경변수)")
	allocateCmd.Flags().Float64Var(&allocateLambda, "lambda", 0, "강건성 가중치 (기본: 환경변수)")
	allocateCmd.Flags().Float64Var(&allocatePrediction, "prediction", 0, "가격 예측 (lambda < 1일 때 필수)")

	allocateCmd.MarkFlagRequired("prices")
}

func runAllocate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	prices, err := parsePrices(allocatePrices)
	if err != nil {
		return err
	}

	p := algorithm.Params{
		LowerBound: cfg.Trading.LowerBound,
		UpperBound: cfg.Trading.UpperBound,
		Lambda:     cfg.Trading.Lambda,
	}
	if allocateLower != 0 {
		p.LowerBound = allocateLower
	}
	if allocateUpper != 0 {
		p.UpperBound = allocateUpper
	}
	if allocateLambda != 0 {
		p.Lambda = allocateLambda
	}

	var oracle algorithm.Oracle
	if p.Lambda < 1 {
		if allocatePrediction == 0 {
			return fmt.Errorf("--prediction is required when lambda < 1")
		}
		oracle = cliOracle{value: allocatePrediction}
	}

	engine, err := algorithm.NewEngine(p, nil, oracle, log)
	if err != nil {
		return fmt.Errorf("build allocation engine: %w", err)
	}

	result, err := engine.Allocate(algorithm.Episode(prices))
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}

	fmt.Println()
	widths := []int{6, 12, 12}
	PrintTableHeader([]string{"Step", "Price", "Fraction"}, widths)
	for i, price := range prices {
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", price),
			fmt.Sprintf("%.6f", result.Allocation[i]),
		}, widths)
	}

	fmt.Println()
	PrintKeyValue("Profit", fmt.Sprintf("%.2f", result.Profit), 8)
	PrintKeyValue("Hold", fmt.Sprintf("%d", result.HoldSteps), 8)
	PrintKeyValue("Partial", fmt.Sprintf("%d", result.PartialSteps), 8)
	PrintKeyValue("All-in", fmt.Sprintf("%d", result.AllInSteps), 8)

	return nil
}

// parsePrices splits the comma separated price list
func parsePrices(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	prices := make([]float64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		price, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", part)
		}
		prices = append(prices, price)
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("--prices is empty")
	}
	return prices, nil
}
