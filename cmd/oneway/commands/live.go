package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/feed"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/logger"
)

// liveCmd represents the live command
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "라이브 페이퍼 세션 시작",
	Long: `Gemini 마켓데이터 피드에 연결하여 라이브 페이퍼 세션을 실행합니다.

체결 가격을 일정 간격으로 샘플링하여 에피소드를 구성하고, 스텝 수가
차면 할당 엔진으로 에피소드를 종료합니다. 실제 주문은 내지 않습니다.

Flags:
  --steps       에피소드 스텝 수 (기본: 168 = 1주 @ 1h)
  --interval    샘플링 간격 (기본: 환경변수 FEED_STEP_INTERVAL)
  --symbol      거래 심볼 (기본: 환경변수 DATA_SYMBOL)
  --prediction  가격 예측 (lambda < 1일 때 필수)

Example:
  go run ./cmd/oneway live --steps 168 --interval 1h
  go run ./cmd/oneway live --steps 24 --interval 5m --lambda 0.5 --prediction 65000`,
	RunE: runLive,
}

var (
	liveSteps      int
	liveInterval   string
	liveSymbol     string
	liveLambda     float64
	livePrediction float64
)

func init() {
	rootCmd.AddCommand(liveCmd)

	// Flags
	liveCmd.Flags().IntVar(&liveSteps, "steps", 168, "에피소드 스텝 수")
	liveCmd.Flags().StringVar(&liveInterval, "interval", "", "샘플링 간격 (예: 5m)")
	liveCmd.Flags().StringVar(&liveSymbol, "symbol", "", "거래 심볼")
	liveCmd.Flags().Float64Var(&liveLambda, "lambda", 0, "강건성 가중치 (기본: 환경변수)")
	liveCmd.Flags().Float64Var(&livePrediction, "prediction", 0, "가격 예측 (lambda < 1일 때 필수)")
}

// cliOracle feeds the flag-supplied prediction into the engine
type cliOracle struct {
	value float64
}

func (o cliOracle) Predict(_ []algorithm.Episode) (float64, bool) {
	return o.value, true
}

func runLive(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oneway Live Session ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	interval := cfg.Feed.StepInterval
	if liveInterval != "" {
		interval, err = time.ParseDuration(liveInterval)
		if err != nil {
			return fmt.Errorf("invalid --interval: %w", err)
		}
	}

	symbol := strings.ToLower(cfg.Data.Symbol)
	if liveSymbol != "" {
		symbol = strings.ToLower(liveSymbol)
	}

	p := algorithm.Params{
		LowerBound: cfg.Trading.LowerBound,
		UpperBound: cfg.Trading.UpperBound,
		Lambda:     cfg.Trading.Lambda,
	}
	if liveLambda != 0 {
		p.Lambda = liveLambda
	}

	var oracle algorithm.Oracle
	if p.Lambda < 1 {
		if livePrediction == 0 {
			return fmt.Errorf("--prediction is required when lambda < 1")
		}
		oracle = cliOracle{value: livePrediction}
	}

	engine, err := algorithm.NewEngine(p, nil, oracle, log)
	if err != nil {
		return fmt.Errorf("build allocation engine: %w", err)
	}

	session, err := feed.NewSession(engine, interval, liveSteps, log)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	client := feed.NewClient(cfg.Feed.WSURL, symbol, log)
	client.OnTrade(session.Observe)
	client.OnError(func(err error) {
		log.WithError(err).Warn("Feed error")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reconnect in the background on connection loss
	client.OnDisconnect(func() {
		go func() {
			if err := client.Reconnect(ctx); err != nil {
				log.WithError(err).Error("Feed reconnection failed")
				cancel()
			}
		}()
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}
	defer client.Disconnect()

	fmt.Printf("\n📡 Connected to %s feed\n", symbol)
	fmt.Printf("🕒 %d steps @ %s (episode ends %s)\n",
		liveSteps, interval, time.Now().Add(time.Duration(liveSteps)*interval).Format("2006-01-02 15:04"))
	fmt.Println("\nPress Ctrl+C to close the episode early")

	// Cancel the session on interrupt; the session liquidates what it
	// has collected so far
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	result, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Println("  Session Result")
	PrintSeparator()
	PrintKeyValue("Steps", fmt.Sprintf("%d", result.Steps), 10)
	PrintKeyValue("Profit", fmt.Sprintf("%.2f", result.Profit), 10)
	PrintKeyValue("Hold", fmt.Sprintf("%d", result.HoldSteps), 10)
	PrintKeyValue("Partial", fmt.Sprintf("%d", result.PartialSteps), 10)
	PrintKeyValue("All-in", fmt.Sprintf("%d", result.AllInSteps), 10)
	PrintSeparator()
	PrintSuccess("Session closed")

	return nil
}
