package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"jobscout/internal/api/validation"
	"jobscout/internal/config"
	"jobscout/internal/exporter"
	"jobscout/internal/recovery"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

func runList(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var req models.ListJobsRequest
	fs.StringVar(&req.Status, "status", "", "only jobs with this status (new, applied, interested, rejected)")
	fs.IntVar(&req.MinScore, "min-score", 0, "only jobs scoring at least this")
	fs.StringVar(&req.RoleType, "role", "", "only this role type (pm, vc, other)")
	fs.IntVar(&req.Limit, "limit", 50, "maximum number of jobs")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	fs.Parse(args)

	if err := validation.New().Struct(&req); err != nil {
		return utils.NewValidationError(err.Error())
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	jobs, err := a.repo.ListJobs(ctx, req.Filter())
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, jobs)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCORE\tSTATUS\tTITLE\tCOMPANY\tLOCATION")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			j.ID, j.Score, j.Status, utils.Truncate(j.Title, 60), j.CompanyName, utils.GetStringOrDefault(j.Location, "-"))
	}
	return tw.Flush()
}

func parseID(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, utils.NewValidationError("expected exactly one job id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.NewValidationError(fmt.Sprintf("invalid job id %q", fs.Arg(0)))
	}
	return id, nil
}

func runShow(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	fs.Parse(args)
	id, err := parseID(fs)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	job, err := a.repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, job)
}

func runUpdate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	status := fs.String("status", "", "new status (new, applied, interested, rejected)")
	notes := fs.String("notes", "", "replace the job's notes")
	fs.Parse(args)
	id, err := parseID(fs)
	if err != nil {
		return err
	}

	req := models.UpdateJobRequest{Status: models.JobStatus(*status)}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "notes" {
			req.Notes = notes
		}
	})
	if err := validation.New().Struct(&req); err != nil {
		return utils.NewValidationError(err.Error())
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	job, err := a.repo.UpdateJobStatus(ctx, id, req.Status, req.Notes, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("Job %d is now %s\n", job.ID, job.Status)
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print JSON")
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.repo.Stats(ctx)
	if err != nil {
		return err
	}
	if err := a.quota.FillStats(ctx, stats); err != nil {
		a.logger.Warn("Quota usage unavailable", map[string]interface{}{"error": err.Error()})
	}
	spooled, err := a.queue.Len()
	if err != nil {
		a.logger.Warn("Recovery spool unreadable", map[string]interface{}{"error": err.Error()})
	}

	if *asJSON {
		return printJSON(os.Stdout, stats)
	}

	fmt.Printf("Companies:       %d\n", stats.TotalCompanies)
	fmt.Printf("Jobs:            %d\n", stats.TotalJobs)
	fmt.Printf("Average score:   %.1f\n", stats.AverageScore)
	for status, n := range stats.ByStatus {
		fmt.Printf("  %-13s  %d\n", status, n)
	}
	fmt.Printf("Quota (%s):  %d / %d\n", stats.QuotaPeriod, stats.QuotaUsed, stats.QuotaCeiling)
	fmt.Printf("Spooled:         %d\n", spooled)
	if stats.LastRunAt != nil {
		fmt.Printf("Last run:        %s\n", stats.LastRunAt.Format(time.RFC3339))
	}
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jobsPath := fs.String("jobs", "output/jobs_export.csv", "jobs CSV path, empty to skip")
	companiesPath := fs.String("companies", "output/companies_directory.csv", "companies CSV path, empty to skip")
	minScore := fs.Int("min-score", 0, "only export jobs scoring at least this")
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if *jobsPath != "" {
		n, err := exporter.ExportJobs(ctx, a.repo, models.JobFilter{MinScore: *minScore}, *jobsPath)
		switch {
		case errors.Is(err, exporter.ErrNothingToExport):
			fmt.Println("No jobs to export")
		case err != nil:
			return err
		default:
			fmt.Printf("Exported %d jobs to %s\n", n, *jobsPath)
		}
	}

	if *companiesPath != "" {
		n, err := exporter.ExportCompanies(ctx, a.repo, *companiesPath)
		switch {
		case errors.Is(err, exporter.ErrNothingToExport):
			fmt.Println("No companies to export")
		case err != nil:
			return err
		default:
			fmt.Printf("Exported %d companies to %s\n", n, *companiesPath)
		}
	}
	return nil
}

func runRecover(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.queue.Drain(ctx, func(ctx context.Context, e recovery.Entry) error {
		job := e.Job
		_, err := a.gateway.Restore(ctx, &job)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d job(s), %d remain in %s\n", result.Restored, result.Remaining, a.queue.Path())
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
