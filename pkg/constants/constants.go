// Package constants provides shared constants for the loan-schedule application.
package constants

// DateLayout is the format used for disbursement and due dates in requests,
// configuration, and output.
const DateLayout = "2006-01-02"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// MaxScheduleInstallments bounds a single schedule (100 years of monthly
	// payments) regardless of any lending policy.
	MaxScheduleInstallments = 1200

	// DriftTolerance is the relative tolerance, as a fraction of the principal,
	// allowed for the uncorrected final balance of a schedule.
	DriftTolerance = 1e-6

	// CurrencySymbol prefixes formatted amounts (Peruvian sol).
	CurrencySymbol = "S/"
)

// Regulatory and business defaults
const (
	// DefaultUIT is the Unidad Impositiva Tributaria for 2025, in soles.
	DefaultUIT = 5350.00

	// DefaultMinInstallments is the lowest installment count the workflow accepts.
	DefaultMinInstallments = 1

	// DefaultMaxInstallments is the highest installment count the workflow accepts.
	DefaultMaxInstallments = 36

	// DefaultMaxPrincipal is the largest loan the workflow accepts.
	DefaultMaxPrincipal = 50000.00

	// MaxAnnualRatePercent is the highest annual rate accepted, as a percentage.
	MaxAnnualRatePercent = 100.0

	// LateFeeRate is the monthly late-fee rate applied to an installment's principal portion.
	LateFeeRate = 0.01

	// IdentityNumberLength is the number of digits in a national identity number (DNI).
	IdentityNumberLength = 8
)

// Rate convention constants
const (
	// RateConventionEffective treats the annual rate as effective (TEA) and
	// compounds it down to a monthly rate.
	RateConventionEffective = "effective"

	// RateConventionNominal treats the annual rate as nominal and divides it by 12.
	RateConventionNominal = "nominal"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides read by viper.
	EnvPrefix = "LOANSCHEDULE"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum JSON request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultRateLimitRequests is the number of requests allowed per client per window
	DefaultRateLimitRequests = 60

	// DefaultRateLimitWindow is the refill window of the per-client rate limiter
	DefaultRateLimitWindow = "1m"
)
