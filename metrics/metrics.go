// Package metrics exposes fieldgate lifecycle events as Prometheus metrics.
// Register a Collector with the engine as a plugin and serve Handler on the
// scrape endpoint.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/plugin"
)

// Compile-time hook checks.
var (
	_ plugin.Plugin        = (*Collector)(nil)
	_ plugin.AfterResolve  = (*Collector)(nil)
	_ plugin.MatrixSaved   = (*Collector)(nil)
	_ plugin.EntriesPruned = (*Collector)(nil)
	_ plugin.FieldsHidden  = (*Collector)(nil)
	_ plugin.WriteRejected = (*Collector)(nil)
	_ plugin.ActionDenied  = (*Collector)(nil)
)

// Collector is a plugin that counts fieldgate events.
type Collector struct {
	registry *prometheus.Registry

	ResolutionsTotal   *prometheus.CounterVec
	SavesTotal         prometheus.Counter
	EditsTotal         prometheus.Counter
	ChangedTotal       prometheus.Counter
	PrunedTotal        prometheus.Counter
	HiddenFieldsTotal  *prometheus.CounterVec
	RejectedWriteTotal *prometheus.CounterVec
	DeniedActionsTotal *prometheus.CounterVec
}

// New creates a Collector and registers its metrics. A nil registry gets a
// fresh one.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldgate_resolutions_total",
				Help: "Total number of permission resolutions",
			},
			[]string{"module", "scope"},
		),
		SavesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_matrix_saves_total",
			Help: "Total number of persisted matrix saves",
		}),
		EditsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_matrix_edits_total",
			Help: "Total number of deduplicated edits persisted",
		}),
		ChangedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_matrix_changes_total",
			Help: "Total number of entries whose level changed",
		}),
		PrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fieldgate_entries_pruned_total",
			Help: "Total number of orphaned entries pruned",
		}),
		HiddenFieldsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldgate_hidden_fields_total",
				Help: "Total number of fields omitted from read responses",
			},
			[]string{"module", "role"},
		),
		RejectedWriteTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldgate_rejected_write_fields_total",
				Help: "Total number of fields dropped from write payloads",
			},
			[]string{"module", "role"},
		),
		DeniedActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldgate_denied_actions_total",
				Help: "Total number of refused elevated actions",
			},
			[]string{"module", "field", "role"},
		),
	}

	registry.MustRegister(
		c.ResolutionsTotal,
		c.SavesTotal,
		c.EditsTotal,
		c.ChangedTotal,
		c.PrunedTotal,
		c.HiddenFieldsTotal,
		c.RejectedWriteTotal,
		c.DeniedActionsTotal,
	)

	return c
}

// Name implements plugin.Plugin.
func (c *Collector) Name() string { return "prometheus" }

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns the scrape handler for the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// OnAfterResolve counts a resolution. scope is "module" for a whole grid and
// "role" for a single role.
func (c *Collector) OnAfterResolve(_ context.Context, moduleCode, roleCode string, _ int) error {
	scope := "module"
	if roleCode != "" {
		scope = "role"
	}
	c.ResolutionsTotal.WithLabelValues(moduleCode, scope).Inc()
	return nil
}

func (c *Collector) OnMatrixSaved(_ context.Context, _ id.BatchID, entries []*permission.Entry, changed int) error {
	c.SavesTotal.Inc()
	c.EditsTotal.Add(float64(len(entries)))
	c.ChangedTotal.Add(float64(changed))
	return nil
}

func (c *Collector) OnEntriesPruned(_ context.Context, entries []*permission.Entry) error {
	c.PrunedTotal.Add(float64(len(entries)))
	return nil
}

func (c *Collector) OnFieldsHidden(_ context.Context, moduleCode, roleCode string, fields []string) error {
	c.HiddenFieldsTotal.WithLabelValues(moduleCode, roleCode).Add(float64(len(fields)))
	return nil
}

func (c *Collector) OnWriteRejected(_ context.Context, moduleCode, roleCode string, fields []string) error {
	c.RejectedWriteTotal.WithLabelValues(moduleCode, roleCode).Add(float64(len(fields)))
	return nil
}

func (c *Collector) OnActionDenied(_ context.Context, moduleCode, fieldCode, roleCode string) error {
	c.DeniedActionsTotal.WithLabelValues(moduleCode, fieldCode, roleCode).Inc()
	return nil
}
