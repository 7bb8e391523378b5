package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// Setup programmatically creates/ensures the jobs, cost line, job_totals and
// payments collections exist.
func Setup(app core.App) error {
	jobs, err := ensureCollection(app, "jobs", func(c *core.Collection) {
		c.Fields.Add(&core.TextField{Name: "job_number", Required: true})
		c.Fields.Add(&core.TextField{Name: "customer_name", Required: true})
		c.Fields.Add(&core.TextField{Name: "vehicle_plate", Required: false})
		c.Fields.Add(&core.TextField{Name: "description", Required: false})
		c.Fields.Add(&core.BoolField{Name: "include_labor_vat"})
		c.Fields.Add(&core.BoolField{Name: "include_spare_vat"})
		c.Fields.Add(&core.BoolField{Name: "include_outsource_vat"})
		// Free text as typed by the user; coerced to a number when reconciling.
		c.Fields.Add(&core.TextField{Name: "additional_cost", Required: false})
		addTimestamps(c)
	})
	if err != nil {
		return err
	}

	jobRelation := func() *core.RelationField {
		return &core.RelationField{
			Name:          "job",
			Required:      true,
			CollectionId:  jobs.Id,
			CascadeDelete: true,
			MaxSelect:     1,
		}
	}

	if _, err := ensureCollection(app, "work_orders", func(c *core.Collection) {
		c.Fields.Add(jobRelation())
		c.Fields.Add(&core.TextField{Name: "description", Required: true})
		c.Fields.Add(&core.NumberField{Name: "totalcost"})
		addTimestamps(c)
	}); err != nil {
		return err
	}

	if _, err := ensureCollection(app, "spare_changes", func(c *core.Collection) {
		c.Fields.Add(jobRelation())
		c.Fields.Add(&core.TextField{Name: "part_name", Required: true})
		c.Fields.Add(&core.NumberField{Name: "quantity"})
		c.Fields.Add(&core.NumberField{Name: "totalprice"})
		addTimestamps(c)
	}); err != nil {
		return err
	}

	if _, err := ensureCollection(app, "outsources", func(c *core.Collection) {
		c.Fields.Add(jobRelation())
		c.Fields.Add(&core.TextField{Name: "vendor_name", Required: false})
		// Either a list of {requestquantity, description} objects or a
		// JSON-encoded string of the same list.
		c.Fields.Add(&core.JSONField{Name: "outsourcedetails", MaxSize: 1 << 20})
		addTimestamps(c)
	}); err != nil {
		return err
	}

	if _, err := ensureCollection(app, "job_totals", func(c *core.Collection) {
		c.Fields.Add(jobRelation())
		c.Fields.Add(&core.NumberField{Name: "seq", OnlyInt: true})
		for _, name := range []string{
			"labor_subtotal", "parts_subtotal", "outsource_subtotal",
			"labor_vat", "spare_vat", "outsource_vat",
			"additional_cost", "pre_tax_total", "total_vat", "grand_total",
		} {
			c.Fields.Add(&core.NumberField{Name: name})
		}
		c.Fields.Add(&core.BoolField{Name: "flagged"})
		c.Fields.Add(&core.JSONField{Name: "warnings", MaxSize: 1 << 16})
		c.Fields.Add(&core.DateField{Name: "published_at"})
		addTimestamps(c)
		c.AddIndex("idx_job_totals_job", true, "job", "")
	}); err != nil {
		return err
	}

	payments, err := ensureCollection(app, "payments", func(c *core.Collection) {
		c.Fields.Add(jobRelation())
		c.Fields.Add(&core.TextField{Name: "receipt_number", Required: true})
		c.Fields.Add(&core.NumberField{Name: "amount"})
		c.Fields.Add(&core.SelectField{
			Name:      "method",
			Required:  true,
			Values:    []string{"cash", "card", "transfer", "cheque"},
			MaxSelect: 1,
		})
		c.Fields.Add(&core.TextField{Name: "reference", Required: false})
		c.Fields.Add(&core.NumberField{Name: "total_seq", OnlyInt: true})
		c.Fields.Add(&core.DateField{Name: "paid_at"})
		addTimestamps(c)
	})
	if err != nil {
		return err
	}

	// Collections created before receipt numbers were unique get the index here.
	return ensureIndex(app, payments, "idx_payments_receipt_number", true, "receipt_number")
}

func ensureIndex(app core.App, c *core.Collection, name string, unique bool, columns string) error {
	if c.GetIndex(name) != "" {
		return nil
	}
	c.AddIndex(name, unique, columns, "")
	if err := app.Save(c); err != nil {
		return fmt.Errorf("add index %q to %q: %w", name, c.Name, err)
	}
	zap.L().Info("added index", zap.String("collection", c.Name), zap.String("index", name))
	return nil
}

func addTimestamps(c *core.Collection) {
	c.Fields.Add(&core.AutodateField{Name: "created", OnCreate: true})
	c.Fields.Add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})
}

// ensureCollection checks if a collection already exists by name. If it does,
// the existing collection is returned. Otherwise a new base collection is
// created, the addFields callback is invoked to populate its fields, and the
// collection is saved.
func ensureCollection(app core.App, name string, addFields func(*core.Collection)) (*core.Collection, error) {
	existing, err := app.FindCollectionByNameOrId(name)
	if err == nil && existing != nil {
		zap.L().Debug("collection already exists, skipping creation", zap.String("collection", name))
		return existing, nil
	}

	collection := core.NewBaseCollection(name)
	addFields(collection)

	if err := app.Save(collection); err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}

	zap.L().Info("created collection", zap.String("collection", name), zap.String("id", collection.Id))
	return collection, nil
}
