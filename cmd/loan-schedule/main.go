package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/iwvelando/loan-schedule/internal/config"
	"github.com/iwvelando/loan-schedule/internal/logging"
	"github.com/iwvelando/loan-schedule/pkg/amortization"
	"github.com/iwvelando/loan-schedule/pkg/compliance"
	"github.com/iwvelando/loan-schedule/pkg/constants"
	"github.com/iwvelando/loan-schedule/pkg/datetime"
	"github.com/iwvelando/loan-schedule/pkg/output"
	"github.com/iwvelando/loan-schedule/pkg/validation"
	"go.uber.org/zap"
)

type options struct {
	configLocation string
	configExplicit bool
	principal      float64
	rate           float64
	installments   int
	startDate      string
	convention     string
	pep            bool
	outputFormat   string
	logLevel       string
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := flag.NewFlagSet("loan-schedule", flag.ContinueOnError)
	flags.StringVar(&opts.configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	flags.Float64Var(&opts.principal, "principal", 0, "loan amount")
	flags.Float64Var(&opts.rate, "rate", 0, "annual interest rate as a percentage (values <= 1 are read as fractions)")
	flags.IntVar(&opts.installments, "installments", 0, "number of monthly installments")
	flags.StringVar(&opts.startDate, "start-date", "", "disbursement date (YYYY-MM-DD), defaults to today")
	flags.StringVar(&opts.convention, "convention", "", "rate convention override: effective (tea), nominal (tna)")
	flags.BoolVar(&opts.pep, "pep", false, "the client is a politically exposed person")
	flags.StringVar(&opts.outputFormat, "output-format", "", "type of output override: pretty, csv")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.configExplicit = true
		}
	})
	return opts, nil
}

// loadConfiguration falls back to defaults only when the default config file
// is absent; an explicitly named file must exist.
func loadConfiguration(opts options) (*config.Configuration, error) {
	if !opts.configExplicit {
		if _, err := os.Stat(opts.configLocation); errors.Is(err, fs.ErrNotExist) {
			return config.Defaults(), nil
		}
	}
	return config.LoadConfiguration(opts.configLocation)
}

func run(logger *zap.Logger, conf *config.Configuration, opts options, now time.Time, stdout io.Writer) error {
	// CLI override takes precedence over config
	outputFormat := conf.Output.Format
	if opts.outputFormat != "" {
		outputFormat = opts.outputFormat
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	convention, err := conf.RateConvention()
	if err != nil {
		return err
	}
	if opts.convention != "" {
		convention, err = amortization.ParseRateConvention(opts.convention)
		if err != nil {
			return err
		}
	}

	startDate := now
	if opts.startDate != "" {
		startDate, err = datetime.ParseDate(opts.startDate)
		if err != nil {
			return err
		}
	}
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)

	rate := amortization.NormalizeRate(opts.rate)
	if err := validation.ValidatePrincipal(opts.principal, conf.Policy.MaxPrincipal); err != nil {
		return err
	}
	if err := validation.ValidateAnnualRate(rate); err != nil {
		return err
	}
	if err := conf.InstallmentPolicy().Check(opts.installments); err != nil {
		return err
	}

	check := compliance.Evaluate(compliance.Applicant{PEP: opts.pep}, opts.principal, conf.UIT())
	if check.PEPLimitHit {
		return compliance.CheckPEPLimit(opts.principal, conf.UIT(), opts.pep)
	}

	schedule, err := amortization.NewCalculator(logger).Generate(amortization.Request{
		Principal:        opts.principal,
		AnnualRate:       rate,
		InstallmentCount: opts.installments,
		StartDate:        startDate,
		Convention:       convention,
	})
	if err != nil {
		return err
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(stdout, schedule)
		for _, notice := range check.Notices {
			_, _ = fmt.Fprintf(stdout, "Compliance: %s\n", notice)
		}
	case constants.OutputFormatCSV:
		for _, notice := range check.Notices {
			logger.Info(notice,
				zap.String("op", "main"),
				zap.String("declaration", string(check.Declaration)),
			)
		}
		return output.CsvFormat(stdout, schedule)
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	conf, err := loadConfiguration(opts)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", opts.configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, opts.logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(logger, conf, opts, time.Now(), os.Stdout); err != nil {
		logger.Fatal("failed to build loan schedule",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
