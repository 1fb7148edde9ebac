package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

var estimatedRowDesc = prometheus.NewDesc(
	"specimenhub_estimated_row_total",
	"Estimated number of rows in a warehouse database table.",
	[]string{"schema", "table"},
	nil,
)

// DatabaseCollector reports planner row estimates from the postgres catalog.
// Estimates are cheap but stale; they refresh with autovacuum's analyze.
// Scrapes by a role without catalog access log a warning and report nothing.
type DatabaseCollector struct {
	sess    session.Session
	log     *logger.Logger
	timeout time.Duration
}

func NewDatabaseCollector(sess session.Session, log *logger.Logger) *DatabaseCollector {
	return &DatabaseCollector{
		sess:    sess,
		log:     log.With("component", "metrics.database_collector"),
		timeout: 5 * time.Second,
	}
}

func (c *DatabaseCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- estimatedRowDesc
}

func (c *DatabaseCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var rows []struct {
		Schema            string
		Table             string
		EstimatedRowCount int64
	}
	err := c.sess.FetchAll(ctx, &rows, `
		select
			ns.nspname          as schema,
			c.relname           as table,
			c.reltuples::bigint as estimated_row_count
		from
			pg_catalog.pg_class c
			join pg_catalog.pg_namespace ns on (c.relnamespace = ns.oid)
		where
			ns.nspname in ('public', 'receiving', 'warehouse') and
			c.relkind = 'r'
		order by
			schema, "table"`)
	if err != nil {
		if session.IsInsufficientPrivilege(err) {
			c.log.Warn("permission denied collecting row estimates", "error", err.Error())
			return
		}
		c.log.Error("collecting row estimates", "error", err.Error())
		return
	}

	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(
			estimatedRowDesc,
			prometheus.GaugeValue,
			float64(row.EstimatedRowCount),
			row.Schema,
			row.Table,
		)
	}
}
