package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
	"github.com/ethereum-optimism/infra/ibs-acceptor/service"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
)

const EnvVarPrefix = "IBS_ACCEPTOR"

var (
	ProductsAPIURL = &cli.StringFlag{
		Name:    "products-api-url",
		Value:   apiclient.DefaultProductsURL,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PRODUCTS_API_URL"),
		Usage:   "Base URL of the products and customers API",
	}
	BillingAPIURL = &cli.StringFlag{
		Name:    "billing-api-url",
		Value:   apiclient.DefaultBillingURL,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BILLING_API_URL"),
		Usage:   "Base URL of the billing API",
	}
	DatabaseURL = &cli.StringFlag{
		Name:    "database-url",
		Value:   store.DefaultURI,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DATABASE_URL"),
		Usage:   "PostgreSQL connection string of the service's store",
	}
	RequestTimeout = &cli.DurationFlag{
		Name:    "request-timeout",
		Value:   apiclient.DefaultTimeout,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REQUEST_TIMEOUT"),
		Usage:   "Timeout for each API call and store connection attempt",
	}
	RequestsPerSecond = &cli.Float64Flag{
		Name:    "requests-per-second",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REQUESTS_PER_SECOND"),
		Usage:   "Maximum API requests per second. Set to 0 for no limit.",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to a TOML or YAML config file. Explicitly set flags take precedence over it.",
	}
	ResultsTable = &cli.BoolFlag{
		Name:    "results-table",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESULTS_TABLE"),
		Usage:   "Render a results table to stderr after the run",
	}
	ReportDir = &cli.StringFlag{
		Name:    "report-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPORT_DIR"),
		Usage:   "Directory to write scorecard.json and summary.txt into (e.g. 'reports'). Empty disables report files.",
	}
	FailUnder = &cli.IntFlag{
		Name:    "fail-under",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_UNDER"),
		Usage:   "Exit with code 1 when fewer points than this are awarded. Set to 0 to always exit 0 after a run.",
	}
	PushgatewayURL = &cli.StringFlag{
		Name:    "pushgateway-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PUSHGATEWAY_URL"),
		Usage:   "Prometheus Pushgateway to push run metrics to when the run ends",
	}
	StatusEnabled = &cli.BoolFlag{
		Name:    "status.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATUS_ENABLED"),
		Usage:   "Serve /healthz and the live /scorecard while the run is in progress",
	}
	StatusAddr = &cli.StringFlag{
		Name:    "status.addr",
		Value:   service.StatusHost,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATUS_ADDR"),
		Usage:   "Status server listening address",
	}
	StatusPort = &cli.IntFlag{
		Name:    "status.port",
		Value:   service.StatusPort,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STATUS_PORT"),
		Usage:   "Status server listening port",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	ProductsAPIURL,
	BillingAPIURL,
	DatabaseURL,
	RequestTimeout,
	RequestsPerSecond,
	ConfigFile,
	ResultsTable,
	ReportDir,
	FailUnder,
	PushgatewayURL,
	StatusEnabled,
	StatusAddr,
	StatusPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

