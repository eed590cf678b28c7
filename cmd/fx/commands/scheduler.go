package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 시작",
	Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- fx_daily_ops: 평일 17:15 (수집 → daily 예측 → daily 백테스트)
- fx_weekly_forecast: 토요일 09:00 (weekly 예측)

스케줄은 SCHED_DAILY_OPS, SCHED_WEEKLY_FORECAST 로 변경할 수 있습니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.

Example:
  go run ./cmd/fx scheduler
  go run ./cmd/fx scheduler --run-now fx_daily_ops`,
	RunE: runScheduler,
}

var (
	schedRunNow  string
	schedRetries int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&schedRunNow, "run-now", "", "시작 직후 즉시 실행할 작업")
	schedulerCmd.Flags().IntVar(&schedRetries, "retries", 2, "실패 시 재시도 횟수")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== fxlab Scheduler ===")

	a, err := newApp(true)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	sched := scheduler.New(a.log).WithRetry(schedRetries, time.Minute)
	for _, job := range []scheduler.Job{a.dailyOpsJob(), a.weeklyForecastJob()} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %s (%s)\n", name, stats[name].Schedule)
	}

	if schedRunNow != "" {
		if err := sched.RunJob(schedRunNow); err != nil {
			sched.Stop()
			return fmt.Errorf("run job: %w", err)
		}
		fmt.Printf("\n%s started (running in background)\n", schedRunNow)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func printJobStats(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		stat := stats[name]
		if stat.TotalRuns == 0 {
			continue
		}
		fmt.Printf("📊 %s\n", name)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
	}
}
