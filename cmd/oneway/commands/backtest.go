package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/internal/backtest"
	"github.com/wonny/oneway/internal/dataset"
	"github.com/wonny/oneway/internal/params"
	"github.com/wonny/oneway/internal/predictor"
	"github.com/wonny/oneway/internal/results"
	"github.com/wonny/oneway/pkg/config"
	"github.com/wonny/oneway/pkg/database"
	"github.com/wonny/oneway/pkg/httputil"
	"github.com/wonny/oneway/pkg/logger"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "주간 에피소드 백테스트 실행",
	Long: `로컬에 저장된 캔들 데이터로 주간 에피소드 백테스트를 실행합니다.

각 완전한 주(월~일)가 하나의 에피소드이며, 에피소드마다 예산 1.0을
임계값 함수에 따라 단계적으로 전환합니다. 에피소드 이력은 런 전체에
걸쳐 누적되어 오라클의 입력이 됩니다.

Flags:
  --from        시작 날짜 (YYYY-MM-DD, 필수)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --lower       최저 가격 L (기본: 환경변수)
  --upper       최고 가격 U (기본: 환경변수)
  --lambda      강건성 가중치 (0, 1], 1 = 순수 worst-case
  --oracle      예측 오라클 (none|lastmax|ewma)
  --params      YAML 전략 파일 (플래그보다 우선)

Example:
  go run ./cmd/oneway backtest --from 2016-01-04 --to 2022-03-20
  go run ./cmd/oneway backtest --from 2020-01-06 --lambda 0.5 --oracle lastmax
  go run ./cmd/oneway backtest --params config/strategy/btcusd_weekly.yaml --from 2016-01-04`,
	RunE: runBacktestCmd,
}

var (
	backtestFrom      string
	backtestTo        string
	backtestLower     float64
	backtestUpper     float64
	backtestLambda    float64
	backtestOracle    string
	backtestEWMAAlpha float64
	backtestResample  string
	backtestParams    string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	// Flags
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestCmd.Flags().Float64Var(&backtestLower, "lower", 0, "최저 가격 L")
	backtestCmd.Flags().Float64Var(&backtestUpper, "upper", 0, "최고 가격 U")
	backtestCmd.Flags().Float64Var(&backtestLambda, "lambda", 0, "강건성 가중치 (0, 1]")
	backtestCmd.Flags().StringVar(&backtestOracle, "oracle", "none", "예측 오라클 (none|lastmax|ewma)")
	backtestCmd.Flags().Float64Var(&backtestEWMAAlpha, "ewma-alpha", 0.5, "EWMA 평활 계수")
	backtestCmd.Flags().StringVar(&backtestResample, "resample", "", "캔들 간격 (예: 1h, 기본: 환경변수)")
	backtestCmd.Flags().StringVar(&backtestParams, "params", "", "YAML 전략 파일")

	backtestCmd.MarkFlagRequired("from")
}

func runBacktestCmd(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Oneway Backtest ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	btCfg, strategy, rawParams, err := buildBacktestConfig(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("\n📅 Period: %s ~ %s\n", btCfg.StartDate.Format("2006-01-02"), btCfg.EndDate.Format("2006-01-02"))
	fmt.Printf("📈 Bounds: [%.2f, %.2f]\n", btCfg.Params.LowerBound, btCfg.Params.UpperBound)
	fmt.Printf("⚖️  Lambda: %.2f, oracle: %s\n\n", btCfg.Params.Lambda, btCfg.OracleTag)

	// Load candle data
	client := httputil.New(log)
	fetcher := dataset.NewFetcher(cfg.Data, client, log)
	series, err := fetcher.LoadLocal()
	if err != nil {
		return fmt.Errorf("load candles (run 'fetch' first): %w", err)
	}
	fmt.Printf("🕯️  Loaded %d candles\n", len(series))

	// Pick the result store
	repo, cleanup, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := backtest.NewEngine(repo, log)

	fmt.Println("🚀 Starting backtest...")
	outcome, err := engine.Run(context.Background(), series, btCfg)
	if err != nil {
		PrintError(fmt.Sprintf("Backtest failed: %v", err))
		return err
	}

	// Strategy runs carry an audit snapshot tying the run ID to the
	// exact YAML that produced it
	var snap *params.RunSnapshot
	if strategy != nil {
		snap, err = params.NewRunSnapshot(strategy, rawParams, outcome.Run.ID)
		if err != nil {
			return fmt.Errorf("build params snapshot: %w", err)
		}
		log.WithFields(map[string]interface{}{
			"run_id":      snap.RunID,
			"strategy_id": snap.StrategyID,
			"params_hash": snap.ParamsHash,
		}).Info("Strategy snapshot recorded")
	}

	printOutcome(outcome, snap)
	return nil
}

// buildBacktestConfig merges the YAML strategy file, flags and env
// defaults, in that order of precedence. The loaded strategy and its
// raw YAML come back too so the run can be snapshotted afterwards.
func buildBacktestConfig(cfg *config.Config) (backtest.Config, *params.Params, []byte, error) {
	var btCfg backtest.Config
	var strategy *params.Params
	var rawParams []byte

	p := algorithm.Params{
		LowerBound: cfg.Trading.LowerBound,
		UpperBound: cfg.Trading.UpperBound,
		Lambda:     cfg.Trading.Lambda,
	}
	oracleTag := backtestOracle
	ewmaAlpha := backtestEWMAAlpha
	resample := cfg.Trading.Resample

	if backtestLower != 0 {
		p.LowerBound = backtestLower
	}
	if backtestUpper != 0 {
		p.UpperBound = backtestUpper
	}
	if backtestLambda != 0 {
		p.Lambda = backtestLambda
	}
	if backtestResample != "" {
		d, err := time.ParseDuration(backtestResample)
		if err != nil {
			return btCfg, nil, nil, fmt.Errorf("invalid --resample: %w", err)
		}
		resample = d
	}

	if backtestParams != "" {
		var err error
		strategy, rawParams, err = params.Load(backtestParams)
		if err != nil {
			return btCfg, nil, nil, fmt.Errorf("load strategy file: %w", err)
		}
		for _, w := range params.Warn(strategy) {
			PrintWarning(fmt.Sprintf("%s: %s", w.Code, w.Message))
		}

		p.LowerBound = strategy.Trading.LowerBound
		p.UpperBound = strategy.Trading.UpperBound
		p.Lambda = strategy.Trading.Lambda
		oracleTag = strategy.Trading.Oracle
		if strategy.Trading.EWMAAlpha > 0 {
			ewmaAlpha = strategy.Trading.EWMAAlpha
		}
		if d, err := strategy.Backtest.ResampleInterval(); err == nil && d > 0 {
			resample = d
		}
	}

	if err := p.Validate(); err != nil {
		return btCfg, nil, nil, err
	}

	startDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return btCfg, nil, nil, fmt.Errorf("invalid start date: %w", err)
	}

	endDate := time.Now()
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return btCfg, nil, nil, fmt.Errorf("invalid end date: %w", err)
		}
	}

	oracle, tag, err := buildOracle(oracleTag, ewmaAlpha)
	if err != nil {
		return btCfg, nil, nil, err
	}
	if oracle == nil && p.Lambda < 1 {
		return btCfg, nil, nil, fmt.Errorf("--oracle is required when lambda < 1")
	}

	return backtest.Config{
		StartDate: startDate,
		EndDate:   endDate,
		Params:    p,
		Oracle:    oracle,
		OracleTag: tag,
		Resample:  resample,
	}, strategy, rawParams, nil
}

// buildOracle maps an oracle tag to its implementation
func buildOracle(tag string, alpha float64) (algorithm.Oracle, string, error) {
	switch tag {
	case "", "none":
		return nil, "none", nil
	case "lastmax":
		return predictor.NewLastMax(), "lastmax", nil
	case "ewma":
		return predictor.NewEWMA(alpha), "ewma", nil
	default:
		return nil, "", fmt.Errorf("invalid oracle %q (valid: none, lastmax, ewma)", tag)
	}
}

// openRepository connects PostgreSQL when configured, otherwise keeps
// results in memory for the lifetime of the command
func openRepository(cfg *config.Config, log *logger.Logger) (results.Repository, func(), error) {
	if cfg.Database.URL == "" {
		PrintInfo("DATABASE_URL not set, results will not be persisted")
		return results.NewMemoryRepository(), func() {}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	repo := results.NewPostgresRepository(db.Pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}

	return repo, db.Close, nil
}

// printOutcome renders the run summary and its worst episodes
func printOutcome(outcome *backtest.Outcome, snap *params.RunSnapshot) {
	run := outcome.Run

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Println("  Backtest Result")
	PrintSeparator()
	PrintKeyValue("Run ID", run.ID, 12)
	if snap != nil {
		PrintKeyValue("Strategy", snap.StrategyID, 12)
		PrintKeyValue("Params hash", snap.ParamsHash[:16], 12)
	}
	PrintKeyValue("Episodes", fmt.Sprintf("%d", run.EpisodeCount), 12)
	PrintKeyValue("Total profit", fmt.Sprintf("%.2f", run.TotalProfit), 12)
	PrintKeyValue("Mean ratio", fmt.Sprintf("%.4f", run.MeanRatio), 12)
	PrintKeyValue("Worst ratio", fmt.Sprintf("%.4f", run.WorstRatio), 12)
	PrintKeyValue("Duration", run.Duration.Round(time.Millisecond).String(), 12)
	PrintSeparator()

	if verbose {
		fmt.Println()
		widths := []int{12, 8, 12, 12, 8}
		PrintTableHeader([]string{"Week", "Steps", "Profit", "Optimum", "Ratio"}, widths)
		for _, ep := range outcome.Episodes {
			PrintTableRow([]string{
				ep.WeekStart.Format("2006-01-02"),
				fmt.Sprintf("%d", ep.Steps),
				fmt.Sprintf("%.2f", ep.Profit),
				fmt.Sprintf("%.2f", ep.Optimum),
				fmt.Sprintf("%.4f", ep.Ratio),
			}, widths)
		}
	}

	fmt.Println()
	PrintSuccess("Backtest completed")
}
