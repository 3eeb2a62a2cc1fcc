package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/dataset"
	"github.com/nyameri/octreport/internal/remote"
	"github.com/nyameri/octreport/internal/store"
	"github.com/nyameri/octreport/pkg/types"
)

// pipeline loads configured sources, analyses them and publishes the result
// to the store and to every subscriber. Refreshes of one source are
// serialised; different sources refresh concurrently.
type pipeline struct {
	cfg      *config.Config
	store    *store.Store
	fetchers map[string]*remote.Fetcher
	locks    map[string]*sync.Mutex
	now      func() time.Time

	// subscribers run after every successful refresh, in order.
	subscribers []func(*analysis.Analysis)
}

func newPipeline(cfg *config.Config, st *store.Store, subscribers ...func(*analysis.Analysis)) (*pipeline, error) {
	p := &pipeline{
		cfg:         cfg,
		store:       st,
		fetchers:    make(map[string]*remote.Fetcher),
		locks:       make(map[string]*sync.Mutex, len(cfg.Data.Sources)),
		now:         time.Now,
		subscribers: subscribers,
	}
	for _, src := range cfg.Data.Sources {
		p.locks[src.ID] = &sync.Mutex{}
		if !src.IsRemote() {
			continue
		}
		f, err := remote.New(src)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src.ID, err)
		}
		p.fetchers[src.ID] = f
	}
	return p, nil
}

// refresh reloads one source and publishes the new analysis. On a load error
// the previous analysis stays in the store. A comparator failure is not a
// load error: it is published as a failed analysis.
func (p *pipeline) refresh(ctx context.Context, src config.Source) error {
	mu := p.locks[src.ID]
	mu.Lock()
	defer mu.Unlock()

	exp, err := p.loadLayers(ctx, src)
	if err != nil {
		return err
	}

	var scan *types.ScanInfo
	if src.Scans != "" {
		scans, err := dataset.LoadScans(src.Scans)
		if err != nil {
			return err
		}
		scan = scans.Latest()
	}

	norm, err := dataset.LoadNormative(p.cfg.NormativeFor(src))
	if err != nil {
		return err
	}

	a := analysis.Build(src.ID, exp, scan, norm.Reference(), p.now())
	p.store.Put(a)
	for _, sub := range p.subscribers {
		sub(a)
	}

	slog.Info("pipeline: analysis updated",
		"source", src.ID,
		"layers", len(a.Layers),
		"failed", a.Failed(),
		"thinned", a.Counts().Thinned,
		"abnormal", a.Counts().Abnormal,
	)
	return nil
}

func (p *pipeline) loadLayers(ctx context.Context, src config.Source) (*dataset.LayerExport, error) {
	if f, ok := p.fetchers[src.ID]; ok {
		return f.Fetch(ctx)
	}
	return dataset.LoadLayers(src.Layers)
}

// refreshAll refreshes every source matched by keep (all when keep is nil),
// logging failures. It returns the number of sources that failed to load.
func (p *pipeline) refreshAll(ctx context.Context, keep func(config.Source) bool) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, src := range p.cfg.Data.Sources {
		if keep != nil && !keep(src) {
			continue
		}
		wg.Add(1)
		go func(src config.Source) {
			defer wg.Done()
			if err := p.refresh(ctx, src); err != nil {
				slog.Error("pipeline: refresh failed, keeping previous analysis", "source", src.ID, "err", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(src)
	}
	wg.Wait()
	return failed
}

// watchedFiles maps every local dataset file to the sources that read it.
func (p *pipeline) watchedFiles() map[string][]config.Source {
	out := make(map[string][]config.Source)
	add := func(path string, src config.Source) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		out[abs] = append(out[abs], src)
	}
	for _, src := range p.cfg.Data.Sources {
		if !src.IsRemote() {
			add(src.Layers, src)
		}
		add(src.Scans, src)
		add(p.cfg.NormativeFor(src), src)
	}
	return out
}

// watch refreshes the affected sources whenever a local dataset file changes.
// It blocks until ctx is cancelled.
func (p *pipeline) watch(ctx context.Context) error {
	files := p.watchedFiles()
	if len(files) == 0 {
		return nil
	}
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}

	return dataset.Watch(ctx, paths, func(path string) {
		for _, src := range files[path] {
			if err := p.refresh(ctx, src); err != nil {
				slog.Error("pipeline: reload failed, keeping previous analysis", "source", src.ID, "path", path, "err", err)
			}
		}
	})
}

// poll re-fetches remote sources every interval until ctx is cancelled.
func (p *pipeline) poll(ctx context.Context, interval time.Duration) {
	if len(p.fetchers) == 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.refreshAll(ctx, config.Source.IsRemote)
		}
	}
}

// checkCerts logs the certificate state of every https source, warning when
// a certificate is expiring, expired or cannot be verified.
func (p *pipeline) checkCerts(ctx context.Context) {
	for _, src := range p.cfg.Data.Sources {
		cs := remote.CheckCert(ctx, src, p.now())
		if cs == nil {
			continue
		}
		attrs := []any{"source", cs.SourceID, "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer}
		if cs.Status == remote.CertValid {
			slog.Info("pipeline: source certificate", attrs...)
		} else {
			slog.Warn("pipeline: source certificate needs attention", attrs...)
		}
	}
}
