package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
	"github.com/yourusername/catalog-importer/internal/infrastructure/metrics"
)

// Chunk size bounds
const (
	DefaultBatchSize = 500
	MinBatchSize     = 1
	MaxBatchSize     = 5000
)

// PersistOptions persist parametrlari
type PersistOptions struct {
	BatchSize      int
	UpdateExisting bool
	SkipImages     bool
	// Progress receives 0..100 of the persist phase and the current stage.
	Progress func(percent int, stage string)
	// Errors is the run's bounded error log; a fresh one is used when nil.
	Errors *entity.ErrorLog
}

func (o PersistOptions) batchSize() int {
	switch {
	case o.BatchSize < MinBatchSize:
		return DefaultBatchSize
	case o.BatchSize > MaxBatchSize:
		return MaxBatchSize
	}
	return o.BatchSize
}

// Persister writes an entity graph in dependency order inside a transaction
// it is handed but never commits.
type Persister struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// NewPersister yangi persister
func NewPersister(m *metrics.Metrics) *Persister {
	return &Persister{log: logger.Component("import"), metrics: m}
}

// keyIndex maps business key -> surrogate ID per kind for one run.
type keyIndex map[entity.Kind]map[string]uint

func (k keyIndex) resolve(kind entity.Kind, key string) (uint, bool) {
	if key == "" {
		return 0, false
	}
	id, ok := k[kind][key]
	return id, ok
}

func (k keyIndex) put(kind entity.Kind, key string, id uint) {
	m, ok := k[kind]
	if !ok {
		m = make(map[string]uint)
		k[kind] = m
	}
	m[key] = id
}

// prepared is one row with its references resolved.
type prepared struct {
	key   string
	ident string
	row   entity.Row
}

type persistRun struct {
	p     *Persister
	ctx   context.Context
	graph *entity.Graph
	tx    repository.CatalogTx
	opts  PersistOptions
	log   *logrus.Entry

	index keyIndex
	stats *entity.ImportStats
	errs  *entity.ErrorLog

	total int
	done  int
}

// Persist writes g through tx. Row and chunk failures are counted and the
// run goes on; a TransactionFatal error or an observed cancellation stops it
// and is returned together with the stats gathered so far.
func (p *Persister) Persist(ctx context.Context, g *entity.Graph, tx repository.CatalogTx, opts PersistOptions) (*entity.ImportStats, error) {
	run := &persistRun{
		p:     p,
		ctx:   ctx,
		graph: g,
		tx:    tx,
		opts:  opts,
		log:   p.log.WithField("batch_size", opts.batchSize()),
		index: make(keyIndex),
		stats: entity.NewImportStats(),
		errs:  opts.Errors,
		total: g.Total(),
	}
	if run.errs == nil {
		run.errs = entity.NewErrorLog(entity.DefaultErrorLimit)
	}

	err := run.execute()
	run.stats.Finish(run.errs)
	return run.stats, err
}

func (r *persistRun) execute() error {
	for _, kind := range entity.PersistOrder {
		if err := apperror.CheckCancelled(r.ctx, "persist "+string(kind)); err != nil {
			return err
		}

		if kind == entity.KindImage && r.opts.SkipImages {
			n := r.graph.Count(kind)
			r.stats.For(kind).Skipped += n
			r.p.metrics.AddRows(string(kind), metrics.OutcomeSkipped, n)
			r.advance(n, kind)
			continue
		}

		if err := r.persistKind(kind); err != nil {
			return err
		}
		if kind == entity.KindCategory {
			if err := r.linkCategoryParents(); err != nil {
				return err
			}
		}
	}
	if err := apperror.CheckCancelled(r.ctx, "persist"); err != nil {
		return err
	}
	r.report(100, "persist:done")
	return nil
}

func (r *persistRun) persistKind(kind entity.Kind) error {
	ks := r.stats.For(kind)
	log := r.log.WithField("kind", kind)

	rows, skipped := r.prepare(kind)
	ks.Skipped += skipped
	if skipped > 0 {
		log.WithField("skipped", skipped).Debug("Bog'lanmagan qatorlar o'tkazib yuborildi")
	}

	existing, err := r.tx.FindExistingKeys(r.ctx, kind)
	if err != nil {
		return err
	}
	for key, id := range existing {
		r.index.put(kind, key, id)
	}

	var fresh, update []prepared
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.key]; dup {
			ks.Skipped++
			continue
		}
		seen[row.key] = struct{}{}
		if _, ok := existing[row.key]; ok {
			update = append(update, row)
		} else {
			fresh = append(fresh, row)
		}
	}

	for _, row := range update {
		if !r.opts.UpdateExisting {
			continue
		}
		if err := r.tx.Update(r.ctx, kind, existing[row.key], row.row); err != nil {
			if apperror.IsFatal(err) {
				return err
			}
			r.fail(kind, row.ident, err)
			continue
		}
		ks.Updated++
	}
	r.advance(skipped+len(rows)-len(fresh), kind)

	size := r.opts.batchSize()
	for start, chunk := 0, 0; start < len(fresh); start, chunk = start+size, chunk+1 {
		if err := apperror.CheckCancelled(r.ctx, "persist "+string(kind)); err != nil {
			return err
		}
		end := min(start+size, len(fresh))
		if err := r.insertChunk(kind, chunk, fresh[start:end]); err != nil {
			return err
		}
		r.advance(end-start, kind)
	}

	r.p.metrics.AddRows(string(kind), metrics.OutcomeCreated, ks.Created)
	r.p.metrics.AddRows(string(kind), metrics.OutcomeUpdated, ks.Updated)
	r.p.metrics.AddRows(string(kind), metrics.OutcomeSkipped, ks.Skipped)
	r.p.metrics.AddRows(string(kind), metrics.OutcomeError, ks.Errors)

	log.WithFields(logrus.Fields{
		"created": ks.Created,
		"updated": ks.Updated,
		"skipped": ks.Skipped,
		"errors":  ks.Errors,
	}).Info("Entity turi saqlandi")
	return nil
}

// insertChunk bulk-inserts one chunk; when the chunk fails as a whole it is
// retried row by row so one bad row only costs itself.
func (r *persistRun) insertChunk(kind entity.Kind, chunk int, rows []prepared) error {
	ks := r.stats.For(kind)

	batch := make([]entity.Row, len(rows))
	for i, row := range rows {
		batch[i] = row.row
	}
	ids, err := r.tx.BulkInsert(r.ctx, kind, batch)
	if err == nil {
		for i, row := range rows {
			r.index.put(kind, row.key, ids[i])
		}
		ks.Created += len(rows)
		return nil
	}
	if apperror.IsFatal(err) {
		return err
	}

	r.p.metrics.ChunkFallback(string(kind))
	r.log.WithFields(logrus.Fields{"kind": kind, "chunk": chunk, "rows": len(rows), "error": err}).
		Warn("Chunk yozilmadi, qatorma-qator qayta urinilmoqda")

	for _, row := range rows {
		ids, err := r.tx.BulkInsert(r.ctx, kind, []entity.Row{row.row})
		if err != nil {
			if apperror.IsFatal(err) {
				return err
			}
			r.fail(kind, row.ident, err)
			continue
		}
		r.index.put(kind, row.key, ids[0])
		ks.Created++
	}
	return nil
}

// linkCategoryParents sets parent_id once every category of the run has an ID.
func (r *persistRun) linkCategoryParents() error {
	for _, c := range r.graph.Categories {
		parentKey := entity.CategoryKey(c.ParentExternalID)
		if parentKey == "" {
			continue
		}
		id, ok := r.index.resolve(entity.KindCategory, entity.CategoryKey(c.ExternalID))
		if !ok {
			continue
		}
		parentID, ok := r.index.resolve(entity.KindCategory, parentKey)
		if !ok || parentID == id {
			r.log.WithFields(logrus.Fields{"key": c.ExternalID, "parent": parentKey}).Debug("Parent kategoriya topilmadi")
			continue
		}
		if err := r.tx.LinkCategoryParent(r.ctx, id, parentID); err != nil {
			if apperror.IsFatal(err) {
				return err
			}
			r.fail(entity.KindCategory, c.ExternalID, err)
		}
	}
	return nil
}

// prepare resolves parent references for every row of kind. Rows whose
// parent did not resolve are dropped and counted.
func (r *persistRun) prepare(kind entity.Kind) ([]prepared, int) {
	g := r.graph
	var (
		out     []prepared
		skipped int
	)
	skip := func(ident, parent string) {
		skipped++
		r.log.WithFields(logrus.Fields{"kind": kind, "key": ident, "parent": parent}).
			Debug("Parent topilmadi, qator o'tkazib yuborildi")
	}

	switch kind {
	case entity.KindCategory:
		for _, c := range g.Categories {
			c.ParentID = nil
			out = append(out, prepared{key: entity.CategoryKey(c.ExternalID), ident: c.ExternalID, row: c})
		}
	case entity.KindProducer:
		for _, pr := range g.Producers {
			out = append(out, prepared{key: entity.ProducerKey(pr.Name), ident: pr.Name, row: pr})
		}
	case entity.KindUnit:
		for _, u := range g.Units {
			out = append(out, prepared{key: entity.UnitKey(u.ExternalID), ident: u.ExternalID, row: u})
		}
	case entity.KindProduct:
		for _, p := range g.Products {
			var ok bool
			if p.CategoryID, ok = r.optionalRef(entity.KindCategory, entity.CategoryKey(p.CategoryCode)); !ok {
				skip(p.Code, p.CategoryCode)
				continue
			}
			if p.ProducerID, ok = r.optionalRef(entity.KindProducer, entity.ProducerKey(p.ProducerName)); !ok {
				skip(p.Code, p.ProducerName)
				continue
			}
			if p.UnitID, ok = r.optionalRef(entity.KindUnit, entity.UnitKey(p.UnitCode)); !ok {
				skip(p.Code, p.UnitCode)
				continue
			}
			out = append(out, prepared{key: entity.ProductKey(p.Code), ident: p.Code, row: p})
		}
	case entity.KindVariant:
		for _, v := range g.Variants {
			pid, ok := r.index.resolve(entity.KindProduct, entity.ProductKey(v.ProductCode))
			if !ok {
				skip(v.Code, v.ProductCode)
				continue
			}
			v.ProductID = pid
			out = append(out, prepared{key: entity.VariantKey(v.Code), ident: v.Code, row: v})
		}
	case entity.KindStock:
		for _, s := range g.Stocks {
			vid, ok := r.index.resolve(entity.KindVariant, entity.VariantKey(s.VariantCode))
			if !ok {
				skip(s.VariantCode, s.VariantCode)
				continue
			}
			s.VariantID = vid
			out = append(out, prepared{key: entity.StockKey(vid), ident: s.VariantCode, row: s})
		}
	case entity.KindPrice:
		for _, pr := range g.Prices {
			vid, ok := r.index.resolve(entity.KindVariant, entity.VariantKey(pr.VariantCode))
			if !ok {
				skip(pr.VariantCode, pr.VariantCode)
				continue
			}
			pr.VariantID = vid
			out = append(out, prepared{
				key:   entity.PriceKey(vid, pr.Type, pr.Currency),
				ident: fmt.Sprintf("%s/%s/%s", pr.VariantCode, pr.Type, pr.Currency),
				row:   pr,
			})
		}
	case entity.KindImage:
		for _, img := range g.Images {
			pid, ok := r.index.resolve(entity.KindProduct, entity.ProductKey(img.ProductCode))
			if !ok {
				skip(img.URL, img.ProductCode)
				continue
			}
			img.ProductID = pid
			out = append(out, prepared{key: entity.ImageKey(pid, img.URL), ident: img.ProductCode + " " + img.URL, row: img})
		}
	case entity.KindDocument:
		for _, d := range g.Documents {
			pid, ok := r.index.resolve(entity.KindProduct, entity.ProductKey(d.ProductCode))
			if !ok {
				skip(d.URL, d.ProductCode)
				continue
			}
			d.ProductID = pid
			out = append(out, prepared{key: entity.DocumentKey(pid, d.URL), ident: d.ProductCode + " " + d.URL, row: d})
		}
	case entity.KindProperty:
		for _, pp := range g.Properties {
			pid, ok := r.index.resolve(entity.KindProduct, entity.ProductKey(pp.ProductCode))
			if !ok {
				skip(pp.Name, pp.ProductCode)
				continue
			}
			pp.ProductID = pid
			out = append(out, prepared{
				key:   entity.PropertyKey(pid, pp.Name, pp.Language),
				ident: pp.ProductCode + " " + pp.Name,
				row:   pp,
			})
		}
	}
	return out, skipped
}

// optionalRef resolves a nullable reference. An empty key is a valid null; a
// non-empty key that does not resolve is not.
func (r *persistRun) optionalRef(kind entity.Kind, key string) (*uint, bool) {
	if key == "" {
		return nil, true
	}
	id, ok := r.index.resolve(kind, key)
	if !ok {
		return nil, false
	}
	return &id, true
}

func (r *persistRun) fail(kind entity.Kind, ident string, err error) {
	r.stats.For(kind).Errors++
	typ := apperror.BatchWrite
	if k, ok := apperror.KindOf(err); ok {
		typ = k
	}
	r.errs.Add(entity.ErrorEntry{
		Type:       typ.String(),
		Entity:     string(kind),
		Identifier: ident,
		Message:    err.Error(),
	})
	r.log.WithFields(logrus.Fields{"kind": kind, "key": ident, "error": err}).Warn("Qator yozilmadi")
}

func (r *persistRun) advance(n int, kind entity.Kind) {
	r.done += n
	if r.total == 0 {
		return
	}
	r.report(min(r.done*100/r.total, 99), "persist:"+string(kind))
}

func (r *persistRun) report(percent int, stage string) {
	if r.opts.Progress != nil {
		r.opts.Progress(percent, stage)
	}
}
