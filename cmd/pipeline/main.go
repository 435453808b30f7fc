// Command pipeline runs the extraction-and-valuation pipeline from the shell.
//
//	pipeline run -doc S100AAAA [-force]
//	pipeline run -date 2024-06-20 [-force]
//	pipeline report [-from 2024-06-01] [-to 2024-06-30] [-format md|html|json]
//	pipeline remove -doc S100AAAA
//	pipeline register -doc S100AAAA -filer E00001 -submit 2024-06-20 [-period-end 2024-03-31] [-decoded]
//	pipeline seed-subjects [-file config/subjects.hjson]
//	pipeline schedule
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filing_valuation/pkg/app"
	"filing_valuation/pkg/config"
	"filing_valuation/pkg/core/pipeline"
	"filing_valuation/pkg/logger"
	"filing_valuation/pkg/models"
	"filing_valuation/pkg/scheduler"

	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "run":
		err = runCmd(ctx, a, args)
	case "report":
		err = reportCmd(ctx, a, args)
	case "remove":
		err = removeCmd(ctx, a, args)
	case "register":
		err = registerCmd(ctx, a, args, log)
	case "seed-subjects":
		err = seedCmd(ctx, a, args, log)
	case "schedule":
		err = scheduleCmd(ctx, a, log)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		a.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pipeline run|report|remove|register|seed-subjects|schedule [flags]")
}

func runCmd(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	doc := fs.String("doc", "", "document id to run")
	date := fs.String("date", "", "submit date to run (YYYY-MM-DD)")
	force := fs.Bool("force", false, "re-run stages that are already DONE or PARTIAL")
	fs.Parse(args)

	opts := pipeline.Options{Force: *force}
	switch {
	case *doc != "" && *date == "":
		res, err := a.Orchestrator.RunFiling(ctx, *doc, opts)
		if err != nil {
			return err
		}
		return printJSON(res)
	case *date != "" && *doc == "":
		day, err := time.Parse(models.DateLayout, *date)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		results, err := a.Orchestrator.RunSubmitDate(ctx, day, opts)
		if perr := printJSON(results); perr != nil && err == nil {
			err = perr
		}
		return err
	}
	return errors.New("run needs exactly one of -doc or -date")
}

func reportCmd(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	today := time.Now().UTC().Format(models.DateLayout)
	from := fs.String("from", today, "first submit date (YYYY-MM-DD)")
	to := fs.String("to", today, "last submit date (YYYY-MM-DD)")
	format := fs.String("format", "md", "md, html or json")
	fs.Parse(args)

	fromDate, err := time.Parse(models.DateLayout, *from)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	toDate, err := time.Parse(models.DateLayout, *to)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	report, err := a.Orchestrator.Report(ctx, fromDate, toDate)
	if err != nil {
		return err
	}
	switch *format {
	case "json":
		return printJSON(report)
	case "html":
		html, err := report.HTML()
		if err != nil {
			return err
		}
		fmt.Print(html)
	default:
		fmt.Print(report.Markdown())
	}
	return nil
}

func removeCmd(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	doc := fs.String("doc", "", "document id to remove")
	fs.Parse(args)
	if *doc == "" {
		return errors.New("remove needs -doc")
	}
	return a.Orchestrator.Remove(ctx, *doc)
}

func registerCmd(ctx context.Context, a *app.App, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	doc := fs.String("doc", "", "document id")
	filer := fs.String("filer", "", "filer code")
	company := fs.String("company", "", "company code")
	docType := fs.String("type", string(models.DocTypeAnnualReport), "document type code")
	quarter := fs.Int("quarter", 0, "quarter (1-4) of a quarterly report")
	periodStart := fs.String("period-start", "", "fiscal period start (YYYY-MM-DD)")
	periodEnd := fs.String("period-end", "", "fiscal period end (YYYY-MM-DD)")
	submit := fs.String("submit", "", "submit date (YYYY-MM-DD)")
	downloaded := fs.Bool("downloaded", true, "mark the download stage DONE")
	decoded := fs.Bool("decoded", false, "mark the decode stage DONE")
	fs.Parse(args)

	if *doc == "" || *filer == "" || *submit == "" {
		return errors.New("register needs -doc, -filer and -submit")
	}
	f := models.Filing{
		DocumentID:       *doc,
		FilerCode:        *filer,
		CompanyCode:      *company,
		DocumentTypeCode: models.DocumentTypeCode(*docType),
		QuarterType:      models.QuarterType(*quarter),
	}
	var err error
	if f.SubmitDate, err = optionalDate(*submit); err != nil {
		return fmt.Errorf("invalid -submit: %w", err)
	}
	if f.PeriodStart, err = optionalDate(*periodStart); err != nil {
		return fmt.Errorf("invalid -period-start: %w", err)
	}
	if f.PeriodEnd, err = optionalDate(*periodEnd); err != nil {
		return fmt.Errorf("invalid -period-end: %w", err)
	}

	var done []models.Stage
	if *downloaded {
		done = append(done, models.StageDownload)
	}
	if *decoded {
		done = append(done, models.StageDecode)
	}
	inserted, err := a.Register(ctx, f, done...)
	if err != nil {
		return err
	}
	log.Info().Str("document_id", f.DocumentID).Bool("inserted", inserted).Msg("filing registered")
	return nil
}

// optionalDate parses YYYY-MM-DD; an empty string is the zero time.
func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.DateLayout, s)
}

func seedCmd(ctx context.Context, a *app.App, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("seed-subjects", flag.ExitOnError)
	file := fs.String("file", a.Config.Paths.SubjectSeed, "hjson subject seed")
	fs.Parse(args)

	n, err := app.SeedSubjects(ctx, a.Store, a.Taxonomy, *file)
	if err != nil {
		return err
	}
	log.Info().Int("subjects", n).Str("seed", *file).Msg("subjects saved")
	return nil
}

func scheduleCmd(ctx context.Context, a *app.App, log zerolog.Logger) error {
	s := scheduler.New(ctx, log)
	job := &scheduler.SubmitDateJob{
		Runner:       a.Orchestrator,
		LookbackDays: a.Config.Schedule.LookbackDays,
		Log:          log,
	}
	if err := s.AddJob(a.Config.Schedule.Cron, job); err != nil {
		return fmt.Errorf("schedule %q: %w", a.Config.Schedule.Cron, err)
	}
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
