package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/treasurylens/treasury-cli/internal/discrepancy"
	"github.com/treasurylens/treasury-cli/internal/edgar"
	"github.com/treasurylens/treasury-cli/internal/extract"
	"github.com/treasurylens/treasury-cli/internal/fetcher"
	"github.com/treasurylens/treasury-cli/internal/model"
	"github.com/treasurylens/treasury-cli/internal/orchestrator"
	"github.com/treasurylens/treasury-cli/internal/relevance"
	"github.com/treasurylens/treasury-cli/internal/resolve"
	"github.com/treasurylens/treasury-cli/internal/store"
	"github.com/treasurylens/treasury-cli/pkg/llm"
)

// initStore opens the configured store backend and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		st, err = store.NewSQLite(cfg.Store.Path)
	}
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// env bundles the wired components shared by the reconciliation commands.
type env struct {
	Store    store.Store
	Fetch    fetcher.Fetcher
	Edgar    *edgar.Client
	Facts    *edgar.FactResolver
	Registry *discrepancy.Registry
}

// initEnv wires the full stack from configuration. The LLM path is only
// available when an Anthropic key is configured; commands that need it
// degrade to the structured path alone.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	fetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.Edgar.UserAgent,
		Timeout:   time.Duration(cfg.Edgar.TimeoutSecs) * time.Second,
	})
	client := edgar.NewClient(fetch, cfg.Edgar)
	facts := edgar.NewFactResolver(client, resolve.DefaultCatalog())

	registry := discrepancy.NewRegistry()
	for _, src := range cfg.Sources {
		registry.Register(discrepancy.NewJSONSource(src, fetch))
	}

	return &env{
		Store:    st,
		Fetch:    fetch,
		Edgar:    client,
		Facts:    facts,
		Registry: registry,
	}, nil
}

// prober builds the probabilistic path, or nil when no API key is set.
func (e *env) prober() *orchestrator.FilingProber {
	if cfg.Anthropic.Key == "" {
		return nil
	}
	ex := extract.New(
		llm.NewAnthropicClient(cfg.Anthropic.Key),
		cfg.Anthropic,
		relevance.New(cfg.Relevance.BudgetChars),
	)
	return orchestrator.NewFilingProber(e.Edgar, ex, cfg.Edgar.MaxFilings)
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// resolveCompanies loads the named tickers from the store, or the full
// tracked universe when no tickers are given.
func resolveCompanies(ctx context.Context, st store.Store, tickers []string) ([]model.Company, error) {
	if len(tickers) == 0 {
		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "list companies")
		}
		return companies, nil
	}

	var out []model.Company
	for _, t := range tickers {
		c, err := st.GetCompany(ctx, t)
		if err != nil {
			return nil, eris.Wrapf(err, "get company %s", t)
		}
		if c == nil {
			return nil, eris.Errorf("unknown ticker %s: add it with `treasury-cli companies add` or `import`", t)
		}
		out = append(out, *c)
	}
	return out, nil
}
