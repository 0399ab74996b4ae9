// Command emsd runs the block-energy dispatch controller: it wires
// together the CSV ingestion pollers, the control loop, the output log
// and buffered repository, and the optional reporting/plotting sinks,
// the way the teacher's main.go wires meters, the bess, and the
// dataplatform around controller.Controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cepro/ems-block-dispatch/config"
	"github.com/cepro/ems-block-dispatch/controlloop"
	"github.com/cepro/ems-block-dispatch/ingest"
	"github.com/cepro/ems-block-dispatch/inverterio"
	"github.com/cepro/ems-block-dispatch/logsink"
	"github.com/cepro/ems-block-dispatch/plotting"
	"github.com/cepro/ems-block-dispatch/reporting"
	"github.com/cepro/ems-block-dispatch/tariff"
)

// uploadBatchSize bounds how many buffered rows reporting.Client uploads
// per cycle.
const uploadBatchSize = 200

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	var configFilePath string
	flag.StringVar(&configFilePath, "f", "./config.json", "Specify config file path")
	flag.Parse()

	slog.Info("Starting", "config_file", configFilePath)

	cfg, err := config.Read(configFilePath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		return
	}

	loc, err := time.LoadLocation(cfg.Time.Timezone)
	if err != nil {
		slog.Error("Failed to load timezone", "timezone", cfg.Time.Timezone, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	dayAhead, err := loadDayAhead(cfg.Ingest.DayAheadPath, loc)
	if err != nil {
		slog.Error("Failed to load day-ahead schedule", "error", err)
		return
	}

	forecastPoller := ingest.NewForecastPoller(cfg.Ingest.ForecastPath, loc)
	actualPoller := ingest.NewActualPoller(cfg.Ingest.ActualPath, loc)

	csvWriter, err := logsink.NewCSVWriter(cfg.Tracking.LogDir)
	if err != nil {
		slog.Error("Failed to create CSV log writer", "error", err)
		return
	}

	repo, err := logsink.NewRepository(repositoryPath(cfg))
	if err != nil {
		slog.Error("Failed to open local repository", "error", err)
		return
	}

	rows := make(chan logsink.Row, 5)

	loopConfig := controlloop.Config{
		UseQP:                 cfg.MPC.UseQP,
		TerminalSOCSoftWeight: cfg.MPC.TerminalSOCSoftWeight,
		QPWeights:             cfg.MPC.QPWeights,
		RampRateKWPerStep:     cfg.Time.RampRateKWPerStep,
		RampConfigured:        cfg.Time.RampRateConfigured,
		RemainingStepsDay:     remainingStepsInDay(cfg),
	}
	loop := controlloop.New(cfg.Battery, loopConfig, rows)

	if cfg.Inverter.Enabled {
		actuator, err := inverterio.NewModbusBattery(cfg.Inverter.Host)
		if err != nil {
			slog.Error("Failed to connect to inverter", "host", cfg.Inverter.Host, "error", err)
			return
		}
		loop = loop.WithActuator(actuator)
	}

	if cfg.Reporting.Enabled {
		reportClient := reporting.New(cfg.Reporting.SupabaseURL, supabaseAnonKey(), cfg.Reporting.SupabaseSchema)
		go runReportingUploads(ctx, reportClient, repo, time.Second*time.Duration(cfg.Reporting.UploadIntervalSecs))
	}

	go runIngestLoop(ctx, cfg, loc, dayAhead, forecastPoller, actualPoller, loop.Snapshots)
	go loop.Run(ctx, time.NewTicker(time.Duration(cfg.Time.DtMinutesRTU)*time.Minute).C)
	go runRowProcessing(ctx, cfg, rows, csvWriter, repo)

	// wait for a ctrl-c interrupt before exiting
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan

	// cancel any open go-routines and give them up to 100ms to gracefully shutdown
	cancel()
	time.Sleep(time.Millisecond * 100)

	slog.Info("Exiting")
	os.Exit(0)
}

// loadDayAhead reads the day-ahead CSV once at startup.
func loadDayAhead(path string, loc *time.Location) (ingest.DayAheadSeries, error) {
	rows, err := ingest.ReadDayAhead(path, loc)
	if err != nil {
		return ingest.DayAheadSeries{}, fmt.Errorf("read day-ahead file: %w", err)
	}
	return ingest.NewDayAheadSeries(rows), nil
}

// runIngestLoop builds one ingest.Snapshot per control tick and hands it
// to the control loop, re-reading the day-ahead file whenever the wall
// clock crosses into a new simulated day.
func runIngestLoop(ctx context.Context, cfg config.Config, loc *time.Location, dayAhead ingest.DayAheadSeries, forecast *ingest.ForecastPoller, actual *ingest.ActualPoller, snapshots chan<- ingest.Snapshot) {
	ticker := time.NewTicker(time.Duration(cfg.Time.DtMinutesRTU) * time.Minute)
	defer ticker.Stop()

	currentDay := -1

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			t = t.In(loc)
			if t.Day() != currentDay {
				currentDay = t.Day()
				if reloaded, err := loadDayAhead(cfg.Ingest.DayAheadPath, loc); err == nil {
					dayAhead = reloaded
				} else {
					slog.Warn("Failed to reload day-ahead schedule, keeping previous day's", "error", err)
				}
			}

			snap, err := ingest.BuildSnapshot(t, dayAhead, forecast, actual)
			if err != nil {
				slog.Error("Failed to build snapshot", "t_now", t, "error", err)
				continue
			}

			sendIfNonBlocking(snapshots, snap, "control loop snapshot")
		}
	}
}

// runRowProcessing is the single consumer of the control loop's row
// channel: every committed tick row is appended to the CSV log and the
// local repository, accumulated into its 15-minute block's delivered
// energy for tariff evaluation, and buffered for the end-of-day chart.
// Keeping all of this behind one channel avoids splitting a single
// stream of ticks across multiple competing receivers.
func runRowProcessing(ctx context.Context, cfg config.Config, rows <-chan logsink.Row, csvWriter *logsink.CSVWriter, repo *logsink.Repository) {
	tariffIn := tariff.Inputs{
		ContractKWh:       cfg.Tariff.ContractKWh,
		ContractKWhSet:    cfg.Tariff.ContractKWhSet,
		EgatPlanKWh:       cfg.Tariff.EgatPlanKWh,
		EgatPlanKWhSet:    cfg.Tariff.EgatPlanKWhSet,
		HasEgatPlanInWin3: cfg.Tariff.HasEgatPlanInWin3,
		FitRate:           cfg.Tariff.FitRate,
	}
	dtHours := float64(cfg.Time.DtMinutesRTU) / 60.0

	var blockStart time.Time
	var blockEnergyKWh float64

	var dayRows []logsink.Row
	var dayIntervals []logsink.IntervalRow
	currentDay := -1

	for {
		select {
		case <-ctx.Done():
			return
		case row := <-rows:
			if err := csvWriter.Append(row); err != nil {
				slog.Error("Failed to append log row", "error", err)
			}
			if err := repo.StoreRow(row); err != nil {
				slog.Error("Failed to store log row", "error", err)
			}

			if row.Timestamp.Day() != currentDay {
				renderDayPlot(cfg, currentDay, dayRows, dayIntervals)
				dayRows = nil
				dayIntervals = nil
				currentDay = row.Timestamp.Day()
			}
			dayRows = append(dayRows, row)

			if !blockStart.IsZero() && !row.BlockStart.Equal(blockStart) {
				if interval, ok := evaluateBlock(blockStart, blockEnergyKWh, tariffIn, repo); ok {
					dayIntervals = append(dayIntervals, interval)
				}
				blockEnergyKWh = 0
			}
			blockStart = row.BlockStart
			blockEnergyKWh += row.GridOutputKW * dtHours
		}
	}
}

func evaluateBlock(blockStart time.Time, energyKWh float64, in tariff.Inputs, repo *logsink.Repository) (logsink.IntervalRow, bool) {
	result, err := tariff.Evaluate(blockStart, energyKWh, in)
	if err != nil {
		slog.Error("Failed to evaluate tariff block", "block_start", blockStart, "error", err)
		return logsink.IntervalRow{}, false
	}

	intervalRow := logsink.IntervalRow{
		BlockStart:          blockStart,
		Window:              result.Window.String(),
		AdjustedSubinterval: result.AdjustedSubinterval,
		EUseKWh:             result.EUseKWh,
		BaseKWh:             result.BaseKWh,
		PayableKWh:          result.PayableKWh,
		ShortfallKWh:        result.ShortfallKWh,
		PenaltyCurrency:     result.PenaltyCurrency,
		PaymentCurrency:     result.PaymentCurrency,
	}
	if err := repo.StoreIntervalRow(intervalRow); err != nil {
		slog.Error("Failed to store tariff interval row", "error", err)
	}
	return intervalRow, true
}

// renderDayPlot renders the chart for a completed simulated day, if
// tracking.savePlots is enabled and there is anything to plot.
func renderDayPlot(cfg config.Config, previousDay int, rows []logsink.Row, intervals []logsink.IntervalRow) {
	if !cfg.Tracking.SavePlots || previousDay < 0 || len(rows) == 0 {
		return
	}

	day := rows[0].Timestamp
	dayAhead, err := loadDayAhead(cfg.Ingest.DayAheadPath, day.Location())
	if err != nil {
		slog.Warn("Failed to load day-ahead schedule for plot reference trace", "error", err)
	}

	if err := plotting.RenderDay(cfg.Tracking.LogDir, day, rows, intervals, dayAhead); err != nil {
		slog.Error("Failed to render daily plot", "day", day.Format("2006-01-02"), "error", err)
	}
}

// runReportingUploads periodically uploads buffered rows to the
// reporting platform, retrying failed uploads on the next cycle (the
// repository's upload_attempt_count tracks this).
func runReportingUploads(ctx context.Context, client *reporting.Client, repo *logsink.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uploadPendingRows(client, repo)
			uploadPendingIntervalRows(client, repo)
		}
	}
}

func uploadPendingRows(client *reporting.Client, repo *logsink.Repository) {
	pending, err := repo.PendingRows(uploadBatchSize)
	if err != nil {
		slog.Error("Failed to read pending rows", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	if err := client.UploadRows(pending); err != nil {
		slog.Warn("Failed to upload rows, will retry", "error", err)
		_ = repo.IncrementUploadAttemptCount(&pending)
		return
	}
	if err := repo.DeleteRows(&pending); err != nil {
		slog.Error("Failed to delete uploaded rows", "error", err)
	}
}

func uploadPendingIntervalRows(client *reporting.Client, repo *logsink.Repository) {
	pending, err := repo.PendingIntervalRows(uploadBatchSize)
	if err != nil {
		slog.Error("Failed to read pending interval rows", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	if err := client.UploadIntervalRows(pending); err != nil {
		slog.Warn("Failed to upload interval rows, will retry", "error", err)
		_ = repo.IncrementUploadAttemptCount(&pending)
		return
	}
	if err := repo.DeleteRows(&pending); err != nil {
		slog.Error("Failed to delete uploaded interval rows", "error", err)
	}
}

func repositoryPath(cfg config.Config) string {
	return fmt.Sprintf("%s/buffer.sqlite", cfg.Tracking.LogDir)
}

func supabaseAnonKey() string {
	key, ok := os.LookupEnv("SUPABASE_ANON_KEY")
	if !ok {
		slog.Warn("SUPABASE_ANON_KEY not set, reporting uploads will fail authentication")
	}
	return key
}

func remainingStepsInDay(cfg config.Config) int {
	dayStart, err1 := time.Parse("2006-01-02T15:04:05", cfg.Time.DayStart)
	dayEnd, err2 := time.Parse("2006-01-02T15:04:05", cfg.Time.DayEnd)
	if err1 != nil || err2 != nil || cfg.Time.DtMinutesRTU <= 0 {
		return 0
	}
	minutes := dayEnd.Sub(dayStart).Minutes()
	if minutes <= 0 {
		return 0
	}
	return int(minutes) / cfg.Time.DtMinutesRTU
}

// sendIfNonBlocking attempts to send the given value onto the given
// channel, but will only do so if the operation is non-blocking,
// otherwise it logs a warning message and returns, mirroring the
// teacher's sendIfNonBlocking helper.
func sendIfNonBlocking[V any](ch chan<- V, val V, messageTargetLogStr string) {
	select {
	case ch <- val:
	default:
		slog.Warn("Dropped message", "message_target", messageTargetLogStr)
	}
}
