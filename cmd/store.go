package main

import (
	"github.com/meridian-rcm/revperf/internal/pipeline"
	"github.com/meridian-rcm/revperf/internal/store"
)

func artifacts() pipeline.Artifacts {
	return pipeline.Artifacts{Dir: cfg.Data.OutputsDir}
}

func initStore() (store.Store, error) {
	dsn := cfg.Store.Path
	if dsn == "" {
		dsn = "revperf.db"
	}
	return store.NewSQLite(dsn)
}
