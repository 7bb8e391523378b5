package collections

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// ── Definition structs ───────────────────────────────────────────────────

type workOrderDef struct {
	description string
	totalCost   float64
}

type spareChangeDef struct {
	partName   string
	quantity   float64
	totalPrice float64
}

type outsourceDef struct {
	vendorName string
	// details is stored as given: a list, or a JSON-encoded string as older
	// clients submitted it.
	details any
}

type jobDef struct {
	jobNumber           string
	customerName        string
	vehiclePlate        string
	description         string
	includeLaborVAT     bool
	includeSpareVAT     bool
	includeOutsourceVAT bool
	additionalCost      string
	workOrders          []workOrderDef
	spareChanges        []spareChangeDef
	outsources          []outsourceDef
}

var seedJobs = []jobDef{
	{
		jobNumber:           "JC-0001",
		customerName:        "Abebe Kebede",
		vehiclePlate:        "AA-3-45871",
		description:         "Front brake overhaul and AC service",
		includeLaborVAT:     true,
		includeSpareVAT:     true,
		includeOutsourceVAT: false,
		additionalCost:      "50",
		workOrders: []workOrderDef{
			{"Brake pad and disc replacement", 1000},
			{"AC diagnosis", 500},
		},
		spareChanges: []spareChangeDef{
			{"Front brake pads (set)", 1, 450},
			{"Front brake disc", 2, 350},
		},
		outsources: []outsourceDef{
			{"Cool Air Workshop", `[{"description":"AC gas refill","requestquantity":"300"}]`},
			{"Precision Machining", []map[string]any{{"description": "Disc skimming", "requestquantity": 200}}},
		},
	},
}

// Seed inserts a demo job with all three cost streams when the jobs
// collection is empty.
func Seed(app core.App) error {
	// ── idempotency: skip if jobs already exist ──────────────────────
	jobsCol, err := app.FindCollectionByNameOrId("jobs")
	if err != nil {
		return fmt.Errorf("seed: could not find jobs collection: %w", err)
	}
	existing, err := app.FindAllRecords(jobsCol)
	if err != nil {
		return fmt.Errorf("seed: could not query jobs: %w", err)
	}
	if len(existing) > 0 {
		return nil // already seeded
	}

	zap.L().Info("seed: jobs collection is empty, inserting seed data")

	workOrdersCol, err := app.FindCollectionByNameOrId("work_orders")
	if err != nil {
		return fmt.Errorf("seed: could not find work_orders collection: %w", err)
	}
	spareChangesCol, err := app.FindCollectionByNameOrId("spare_changes")
	if err != nil {
		return fmt.Errorf("seed: could not find spare_changes collection: %w", err)
	}
	outsourcesCol, err := app.FindCollectionByNameOrId("outsources")
	if err != nil {
		return fmt.Errorf("seed: could not find outsources collection: %w", err)
	}

	for _, def := range seedJobs {
		job := core.NewRecord(jobsCol)
		job.Set("job_number", def.jobNumber)
		job.Set("customer_name", def.customerName)
		job.Set("vehicle_plate", def.vehiclePlate)
		job.Set("description", def.description)
		job.Set("include_labor_vat", def.includeLaborVAT)
		job.Set("include_spare_vat", def.includeSpareVAT)
		job.Set("include_outsource_vat", def.includeOutsourceVAT)
		job.Set("additional_cost", def.additionalCost)
		if err := app.Save(job); err != nil {
			return fmt.Errorf("seed: save job %s: %w", def.jobNumber, err)
		}

		for _, wo := range def.workOrders {
			r := core.NewRecord(workOrdersCol)
			r.Set("job", job.Id)
			r.Set("description", wo.description)
			r.Set("totalcost", wo.totalCost)
			if err := app.Save(r); err != nil {
				return fmt.Errorf("seed: save work order %q: %w", wo.description, err)
			}
		}

		for _, sc := range def.spareChanges {
			r := core.NewRecord(spareChangesCol)
			r.Set("job", job.Id)
			r.Set("part_name", sc.partName)
			r.Set("quantity", sc.quantity)
			r.Set("totalprice", sc.totalPrice)
			if err := app.Save(r); err != nil {
				return fmt.Errorf("seed: save spare change %q: %w", sc.partName, err)
			}
		}

		for _, os := range def.outsources {
			r := core.NewRecord(outsourcesCol)
			r.Set("job", job.Id)
			r.Set("vendor_name", os.vendorName)
			r.Set("outsourcedetails", os.details)
			if err := app.Save(r); err != nil {
				return fmt.Errorf("seed: save outsource from %q: %w", os.vendorName, err)
			}
		}

		zap.L().Info("seed: created job", zap.String("job_number", def.jobNumber), zap.String("id", job.Id))
	}

	return nil
}
