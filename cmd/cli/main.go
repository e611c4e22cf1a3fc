package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/clock"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/fixture"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/period"
	"github.com/dvloznov/budget-tracker/internal/reconcile"
	"github.com/dvloznov/budget-tracker/internal/schedule"
	"github.com/dvloznov/budget-tracker/internal/store/inmemory"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "duepass":
		runDuePass(log)
	case "missed":
		runMissed(log)
	case "health":
		runHealth(log)
	case "budgets":
		runBudgets(log)
	case "period":
		runPeriod(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Budget Tracker CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  duepass   Run a scheduling pass over recurring series")
	fmt.Println("  missed    Report series overdue beyond the execution window")
	fmt.Println("  health    Cross-check a series against its emitted transactions")
	fmt.Println("  budgets   Show budget summaries for a person's current period")
	fmt.Println("  period    Show a person's current budget period")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env holds the engines wired for one CLI invocation.
type env struct {
	store     *inmemory.Store
	scheduler *schedule.Scheduler
	periods   *period.Manager
	agg       *budget.Aggregator
}

func buildEnv(log zerolog.Logger, fixturePath, asOf string) (*env, error) {
	var clk clock.Clock = clock.System{}
	if asOf != "" {
		d, err := civil.ParseDate(asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid -as-of date %q: %w", asOf, err)
		}
		clk = clock.NewFixed(d)
	}

	st := inmemory.NewStore(clk)
	if err := fixture.Load(context.Background(), fixturePath, st); err != nil {
		return nil, err
	}

	periods := period.NewManager(st, clk, logger.WithComponent(log, "period"))
	engine := reconcile.NewEngine(st, logger.WithComponent(log, "reconcile"))
	scheduler := schedule.NewScheduler(st, st, clk, logger.WithComponent(log, "schedule"), schedule.Options{})
	agg := budget.NewAggregator(periods, engine, st, logger.WithComponent(log, "budget"))

	return &env{store: st, scheduler: scheduler, periods: periods, agg: agg}, nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func runDuePass(log zerolog.Logger) {
	fs := flag.NewFlagSet("duepass", flag.ExitOnError)
	fixturePath := fs.String("fixture", "", "JSON fixture file to seed the store")
	asOf := fs.String("as-of", "", "run the pass as of this date (YYYY-MM-DD)")
	personID := fs.String("person", "", "narrow the pass to one person")
	dryRun := fs.Bool("dry-run", false, "select and report without executing")
	force := fs.Bool("force", false, "override the per-series auto-execute opt-in")
	maxOverdue := fs.Int("max-days-overdue", 0, "override the overdue window")
	fs.Parse(os.Args[2:])

	if *fixturePath == "" {
		log.Fatal().Msg("Error: --fixture is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	e, err := buildEnv(log, *fixturePath, *asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}

	report, err := e.scheduler.RunDuePass(ctx, schedule.PassOptions{
		PersonID:       *personID,
		DryRun:         *dryRun,
		ForceExecute:   *force,
		MaxDaysOverdue: *maxOverdue,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Due pass failed")
	}
	printJSON(report)
}

func runMissed(log zerolog.Logger) {
	fs := flag.NewFlagSet("missed", flag.ExitOnError)
	fixturePath := fs.String("fixture", "", "JSON fixture file to seed the store")
	asOf := fs.String("as-of", "", "evaluate as of this date (YYYY-MM-DD)")
	personID := fs.String("person", "", "narrow to one person")
	maxOverdue := fs.Int("max-days-overdue", 0, "override the overdue window")
	fs.Parse(os.Args[2:])

	if *fixturePath == "" {
		log.Fatal().Msg("Error: --fixture is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := buildEnv(log, *fixturePath, *asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}

	missed, err := e.scheduler.MissedExecutions(ctx, *personID, *maxOverdue)
	if err != nil {
		log.Fatal().Err(err).Msg("Missed-execution report failed")
	}
	printJSON(missed)
}

func runHealth(log zerolog.Logger) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fixturePath := fs.String("fixture", "", "JSON fixture file to seed the store")
	asOf := fs.String("as-of", "", "evaluate as of this date (YYYY-MM-DD)")
	seriesID := fs.String("series", "", "series ID to check")
	fs.Parse(os.Args[2:])

	if *fixturePath == "" || *seriesID == "" {
		log.Fatal().Msg("Error: --fixture and --series are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := buildEnv(log, *fixturePath, *asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}

	health, err := e.scheduler.ReconcileSeriesHealth(ctx, *seriesID)
	if err != nil {
		log.Fatal().Err(err).Str("series_id", *seriesID).Msg("Health check failed")
	}
	printJSON(health)
}

func runBudgets(log zerolog.Logger) {
	fs := flag.NewFlagSet("budgets", flag.ExitOnError)
	fixturePath := fs.String("fixture", "", "JSON fixture file to seed the store")
	asOf := fs.String("as-of", "", "evaluate as of this date (YYYY-MM-DD)")
	personID := fs.String("person", "", "person ID to summarize")
	fs.Parse(os.Args[2:])

	if *fixturePath == "" || *personID == "" {
		log.Fatal().Msg("Error: --fixture and --person are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := buildEnv(log, *fixturePath, *asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}

	person, err := e.store.GetPerson(ctx, *personID)
	if err != nil {
		log.Fatal().Err(err).Str("person_id", *personID).Msg("Person lookup failed")
	}
	budgets, err := e.store.ListBudgets(ctx, *personID)
	if err != nil {
		log.Fatal().Err(err).Msg("Budget listing failed")
	}

	summaries, err := e.agg.SummarizeAll(ctx, person, budgets)
	if err != nil {
		log.Fatal().Err(err).Msg("Budget aggregation failed")
	}
	printJSON(summaries)
}

func runPeriod(log zerolog.Logger) {
	fs := flag.NewFlagSet("period", flag.ExitOnError)
	fixturePath := fs.String("fixture", "", "JSON fixture file to seed the store")
	asOf := fs.String("as-of", "", "evaluate as of this date (YYYY-MM-DD)")
	personID := fs.String("person", "", "person ID to look up")
	fs.Parse(os.Args[2:])

	if *fixturePath == "" || *personID == "" {
		log.Fatal().Msg("Error: --fixture and --person are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	e, err := buildEnv(log, *fixturePath, *asOf)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}

	person, err := e.store.GetPerson(ctx, *personID)
	if err != nil {
		log.Fatal().Err(err).Str("person_id", *personID).Msg("Person lookup failed")
	}

	current, err := e.periods.GetCurrentPeriod(ctx, person)
	if err != nil {
		log.Fatal().Err(err).Str("person_id", *personID).Msg("Period lookup failed")
	}

	printJSON(struct {
		*domain.BudgetPeriod
		Label string `json:"label"`
	}{current, period.FormatPeriodLabel(current)})
}
