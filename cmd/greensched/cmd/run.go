package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	promexporter "github.com/huyongqii/green-energy/exporters/prometheus"
	"github.com/huyongqii/green-energy/pkg/config"
	"github.com/huyongqii/green-energy/pkg/engine"
	"github.com/huyongqii/green-energy/pkg/forecast"
	"github.com/huyongqii/green-energy/pkg/logging"
	"github.com/huyongqii/green-energy/pkg/power"
	"github.com/huyongqii/green-energy/pkg/record"
	"github.com/huyongqii/green-energy/pkg/sched"
	"github.com/huyongqii/green-energy/pkg/store"
)

var (
	runNodes int
	runJobs  int
	runSeed  int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Replay a workload trace (or a generated one) against the scheduler and
power controller, writing the per-tick snapshot record for analysis.`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().IntVar(&runNodes, "nodes", 16, "node count when no platform file exists")
	runCmd.Flags().IntVar(&runJobs, "jobs", 100, "job count for generated workloads")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "seed for generated workloads")
	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	level := logging.ParseLevel(cfg.Log.Level)

	platform, err := loadPlatform(cfg)
	if err != nil {
		return err
	}

	var workload *engine.Workload
	if cfg.Workload != "" {
		workload, err = engine.LoadWorkload(cfg.Workload)
		if err != nil {
			return err
		}
	} else {
		workload = engine.GenerateWorkload(runJobs, platform.NbNodes, runSeed)
	}

	start, err := cfg.Start()
	if err != nil {
		return err
	}

	eng := engine.New(platform, logging.NewLogger("engine", level, cfg.Log.JSON))

	csvWriter, err := record.NewCSVWriter(cfg.Output.RecordFile)
	if err != nil {
		return err
	}
	defer csvWriter.Close()
	recorders := record.Multi{csvWriter}

	var db *store.SQLiteStore
	if cfg.Output.Database != "" {
		db, err = store.NewSQLiteStore(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		recorders = append(recorders, db)
	}

	var forecaster *forecast.Client
	if cfg.Forecast.URL != "" {
		forecaster = forecast.NewClient(cfg.Forecast.URL, cfg.Forecast.Window,
			cfg.Forecast.Timeout, logging.NewLogger("forecast", level, cfg.Log.JSON))
		recorders = append(recorders, forecaster)
	}

	var policy power.Policy
	switch cfg.Policy.Name {
	case "noop":
		policy = power.NoopPolicy{}
	default:
		policy = &power.QueueDepthPolicy{
			SpareNodes:  cfg.Policy.SpareNodes,
			MaxSleeping: cfg.Policy.MaxSleeping,
		}
	}

	controllerLog := logging.NewLogger("power", level, cfg.Log.JSON)
	schedulerLog := logging.NewLogger("sched", level, cfg.Log.JSON)

	controller := power.NewController(eng, platform.NbNodes, policy, nil, start, controllerLog)
	if forecaster != nil {
		controller.SetForecaster(forecaster)
	}
	scheduler := sched.NewScheduler(eng, controller, &sched.Config{
		PowerCheckInterval: cfg.Scheduler.PowerCheckInterval,
		RecordInterval:     cfg.Scheduler.RecordInterval,
	}, schedulerLog)
	if db != nil {
		scheduler.SetResultSink(db)
	}

	if cfg.HTTP.Enabled {
		exporter := promexporter.NewSimExporter(scheduler, controller)
		recorders = append(recorders, exporter)
		go serveHTTP(cfg.HTTP.Listen, exporter, schedulerLog)
	}
	controller.SetRecorder(recorders)

	eng.Attach(scheduler)
	if err := eng.Run(workload); err != nil {
		return err
	}

	printRunSummary(eng, scheduler, cfg)
	return nil
}

func loadPlatform(cfg *config.Config) (*engine.Platform, error) {
	if cfg.Platform != "" {
		if _, err := os.Stat(cfg.Platform); err == nil {
			return engine.LoadPlatform(cfg.Platform)
		}
	}
	return engine.DefaultPlatform(runNodes), nil
}

func serveHTTP(listen string, exporter *promexporter.SimExporter, log *logging.Logger) {
	router := mux.NewRouter()
	router.Handle("/metrics", exporter).Methods("GET")
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(exporter.Status())
	}).Methods("GET")

	log.Info("serving metrics", map[string]interface{}{"listen": listen})
	if err := http.ListenAndServe(listen, router); err != nil {
		log.Error("metrics server failed", map[string]interface{}{"error": err.Error()})
	}
}

func printRunSummary(eng *engine.Engine, scheduler *sched.Scheduler, cfg *config.Config) {
	stats := scheduler.Stats()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Simulated time", fmt.Sprintf("%.0f s", eng.Now()))
	table.Append("Jobs submitted", fmt.Sprintf("%d", stats.Submitted))
	table.Append("Jobs scheduled", fmt.Sprintf("%d", stats.Scheduled))
	table.Append("Jobs completed", fmt.Sprintf("%d", stats.Completed))
	table.Append("Jobs rejected", fmt.Sprintf("%d", stats.Rejected))
	table.Append("Jobs killed", fmt.Sprintf("%d", stats.Killed))
	table.Append("Total energy", fmt.Sprintf("%.0f J", eng.TotalEnergy()))
	table.Append("Record file", cfg.Output.RecordFile)
	table.Render()
}
