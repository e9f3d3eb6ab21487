// Command shulebook authenticates against the configured identity provider,
// syncs the session with the backend, and prints the tenant's dashboard
// overview.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/shulebook/shulebook-go/apiclient"
	"github.com/shulebook/shulebook-go/authsync"
	"github.com/shulebook/shulebook-go/dashboard"
	"github.com/shulebook/shulebook-go/fetch"
	"github.com/shulebook/shulebook-go/identity"
	"github.com/shulebook/shulebook-go/identity/oidcprovider"
	"github.com/shulebook/shulebook-go/identity/staticprovider"
	"github.com/shulebook/shulebook-go/internal/config"
	"github.com/shulebook/shulebook-go/internal/metrics"
	"github.com/shulebook/shulebook-go/report"
	"github.com/shulebook/shulebook-go/syncstate/inmem"
	"github.com/shulebook/shulebook-go/tenant"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	displayAppname(cfg.AppName)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if cfg.Env == "prod" {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	var notifier report.Notifier = report.Nop{}
	if cfg.RollbarToken != "" {
		rb := report.NewRollbarNotifier(cfg.RollbarToken, cfg.Env, version())
		defer rb.Close()
		notifier = rb
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	provider, closeProvider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	var resolver tenant.Resolver = tenant.NewSubdomainResolver(cfg.Host, cfg.TenantBaseDomain)
	if cfg.Tenant != "" {
		resolver = tenant.Static(cfg.Tenant)
	}

	api := apiclient.New(cfg.APIBaseURL,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}),
		apiclient.WithLogger(logger),
		apiclient.WithCircuitBreaker("shulebook-api"),
	)
	collector := metrics.New(prometheus.NewRegistry())

	controller, err := authsync.NewController(api, inmem.NewStore(),
		authsync.WithTenantResolver(resolver),
		authsync.WithLogger(logger),
		authsync.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	stop := controller.Bind(ctx, provider)
	defer stop()

	fetcher, err := fetch.NewClient(api, provider,
		fetch.WithTenantResolver(resolver),
		fetch.WithNotifier(notifier),
		fetch.WithMetrics(collector),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	svc, err := dashboard.NewService(fetcher, dashboard.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := waitForIdentity(ctx, provider); err != nil {
		return fmt.Errorf("waiting for identity: %w", err)
	}

	overview, err := svc.Overview(ctx,
		fetch.WithRetry(cfg.FetchRetry),
		fetch.WithRetryDelay(cfg.FetchRetryDelay),
	)
	if err != nil {
		return err
	}

	printOverview(overview)
	return nil
}

func buildProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (identity.Provider, func(), error) {
	if cfg.OIDC.IssuerURL != "" {
		p, err := oidcprovider.New(ctx, oidcprovider.Config{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			Scopes:       cfg.OIDC.Scopes,
		}, oidcprovider.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}

	if cfg.AccessToken == "" {
		return nil, nil, errors.New("set SHULEBOOK_ACCESS_TOKEN or SHULEBOOK_OIDC_ISSUER_URL")
	}
	p, err := staticprovider.FromToken(cfg.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {}, nil
}

func waitForIdentity(ctx context.Context, provider identity.Provider) error {
	if provider.Current().Ready() {
		return nil
	}

	ready := make(chan struct{}, 1)
	cancel := provider.OnChange(func(snap identity.Snapshot) {
		if snap.Ready() {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()

	if provider.Current().Ready() {
		return nil
	}
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printOverview(o *dashboard.Overview) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Students\t%d (%d active)\n", o.TotalStudents, o.ActiveStudents)
	fmt.Fprintf(w, "Collected\t%s\n", cents(o.CollectedCents))
	fmt.Fprintf(w, "Outstanding\t%s (%s overdue)\n", cents(o.OutstandingCents), cents(o.OverdueCents))
	if !o.LastPaymentAt.IsZero() {
		fmt.Fprintf(w, "Last payment\t%s\n", o.LastPaymentAt.Format(time.RFC822))
	}

	fmt.Fprintln(w, "\nUpcoming events:")
	if len(o.UpcomingEvents) == 0 {
		fmt.Fprintln(w, "\t(none)")
	}
	for _, e := range o.UpcomingEvents {
		fmt.Fprintf(w, "\t%s\t%s\n", e.StartsAt.Format("Mon 02 Jan 15:04"), e.Title)
	}

	fmt.Fprintln(w, "\nClasses:")
	for name, size := range o.ClassSizes {
		fmt.Fprintf(w, "\t%s\t%d students\n", name, size)
	}
}

func cents(v int64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
