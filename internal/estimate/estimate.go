// Package estimate computes itemized PE-Liner construction cost estimates
// from the rate book: unit-price rules select per-meter resource
// quantities, the price catalog supplies unit prices, and surcharge and
// overhead rules layer conditional and indirect costs on top.
package estimate

import (
	"fmt"
	"math"
)

// Options are the job parameters for one estimate. Diameter is in
// millimeters, Length in meters.
type Options struct {
	PipeType PipeType
	Diameter float64
	Length   float64
	Riser    bool
}

// LineItem is one computed row of the estimate: a single rule resolved
// against its price entry. Quantity and TotalPrice are per meter.
type LineItem struct {
	ItemID       string       `json:"item_id"`
	Name         string       `json:"name"`
	Unit         string       `json:"unit"`
	Quantity     float64      `json:"quantity"`
	UnitPrice    float64      `json:"unit_price"`
	TotalPrice   float64      `json:"total_price"`
	Type         ResourceType `json:"type"`
	WorkCategory string       `json:"work_category"`
}

// SurchargeDetail is one applied surcharge.
type SurchargeDetail struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// OverheadDetail is one applied overhead item.
type OverheadDetail struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CategoryCost is the cost breakdown of one work category over the full
// job length. TotalCost includes the category's share of distributed
// surcharges.
type CategoryCost struct {
	Category      string  `json:"category"`
	MaterialCost  float64 `json:"material_cost"`
	LaborCost     float64 `json:"labor_cost"`
	EquipmentCost float64 `json:"equipment_cost"`
	TotalCost     float64 `json:"total_cost"`
}

// Result is the full itemized outcome of one estimate.
type Result struct {
	TotalCost           float64           `json:"total_cost"`
	DirectMaterialCost  float64           `json:"direct_material_cost"`
	DirectLaborCost     float64           `json:"direct_labor_cost"`
	DirectEquipmentCost float64           `json:"direct_equipment_cost"`
	TotalDirectCost     float64           `json:"total_direct_cost"`
	TotalSurchargeCost  float64           `json:"total_surcharge_cost"`
	Surcharges          []SurchargeDetail `json:"surcharges"`
	TotalOverheadCost   float64           `json:"total_overhead_cost"`
	Overheads           []OverheadDetail  `json:"overheads"`
	Categories          []CategoryCost    `json:"categories"`
	Items               []LineItem        `json:"items"`
	Warnings            []string          `json:"warnings,omitempty"`
}

// categoryAccum tracks per-meter sums for one work category while line
// items are accumulated. Categories keep first-appearance order so the
// result is deterministic for a given rule ordering.
type categoryAccum struct {
	material  float64
	labor     float64
	equipment float64
}

// Calculate runs one estimate against the rate book. It is a pure
// function of its inputs and the current rate-book contents; the engine
// holds no state between calls.
func Calculate(src Source, opts Options) (Result, error) {
	if err := validate(opts); err != nil {
		return Result{}, err
	}

	rules, err := src.RulesFor(opts.PipeType, opts.Diameter)
	if err != nil {
		return Result{}, fmt.Errorf("resolve unit-price rules: %w", err)
	}
	if len(rules) == 0 {
		return Result{}, &NoApplicableRuleError{PipeType: opts.PipeType, Diameter: opts.Diameter}
	}

	prices, err := src.Prices(distinctItemIDs(rules))
	if err != nil {
		return Result{}, fmt.Errorf("resolve prices: %w", err)
	}

	res := Result{
		Surcharges: []SurchargeDetail{},
		Overheads:  []OverheadDetail{},
	}

	// Per-meter direct cost accumulation, overall and per work category.
	var materialPerMeter, laborPerMeter, equipmentPerMeter float64
	categories := map[string]*categoryAccum{}
	var categoryOrder []string

	for _, rule := range rules {
		price, ok := prices[rule.ItemID]
		if !ok {
			return Result{}, &DataIntegrityError{ItemID: rule.ItemID}
		}

		lineCost := rule.QuantityPerMeter * price.UnitPrice
		category := rule.Category()

		acc, ok := categories[category]
		if !ok {
			acc = &categoryAccum{}
			categories[category] = acc
			categoryOrder = append(categoryOrder, category)
		}

		switch price.Type {
		case ResourceLabor:
			laborPerMeter += lineCost
			acc.labor += lineCost
		case ResourceEquipment:
			equipmentPerMeter += lineCost
			acc.equipment += lineCost
		default:
			materialPerMeter += lineCost
			acc.material += lineCost
		}

		res.Items = append(res.Items, LineItem{
			ItemID:       rule.ItemID,
			Name:         price.Name,
			Unit:         price.Unit,
			Quantity:     rule.QuantityPerMeter,
			UnitPrice:    price.UnitPrice,
			TotalPrice:   lineCost,
			Type:         price.Type,
			WorkCategory: category,
		})
	}

	// Scale to the total job length.
	res.DirectMaterialCost = materialPerMeter * opts.Length
	res.DirectLaborCost = laborPerMeter * opts.Length
	res.DirectEquipmentCost = equipmentPerMeter * opts.Length
	res.TotalDirectCost = res.DirectMaterialCost + res.DirectLaborCost + res.DirectEquipmentCost

	res.Categories = make([]CategoryCost, 0, len(categoryOrder))
	for _, name := range categoryOrder {
		acc := categories[name]
		cc := CategoryCost{
			Category:      name,
			MaterialCost:  acc.material * opts.Length,
			LaborCost:     acc.labor * opts.Length,
			EquipmentCost: acc.equipment * opts.Length,
		}
		cc.TotalCost = cc.MaterialCost + cc.LaborCost + cc.EquipmentCost
		res.Categories = append(res.Categories, cc)
	}

	if err := applySurcharges(src, opts, &res); err != nil {
		return Result{}, err
	}
	if err := applyOverheads(src, &res); err != nil {
		return Result{}, err
	}

	res.TotalCost = res.TotalDirectCost + res.TotalSurchargeCost + res.TotalOverheadCost
	return res, nil
}

func validate(opts Options) error {
	if !ValidPipeType(opts.PipeType) {
		return &InvalidInputError{Field: "pipe_type", Reason: fmt.Sprintf("must be %q or %q", PipeSteel, PipeDuctile)}
	}
	if opts.Diameter <= 0 {
		return &InvalidInputError{Field: "diameter", Reason: "must be greater than 0"}
	}
	if opts.Length <= 0 {
		return &InvalidInputError{Field: "length", Reason: "must be greater than 0"}
	}
	return nil
}

// activeConditions derives the surcharge condition keys for a job. New
// conditions are added here and as rule rows; the engine loop does not
// change.
func activeConditions(opts Options) []string {
	var keys []string
	if opts.Riser {
		keys = append(keys, ConditionRiser)
	}
	return keys
}

func applySurcharges(src Source, opts Options, res *Result) error {
	for _, key := range activeConditions(opts) {
		rule, err := src.SurchargeFor(key)
		if err != nil {
			return fmt.Errorf("resolve surcharge rule %q: %w", key, err)
		}
		if rule == nil {
			continue
		}
		if rule.Kind != SurchargePercentage {
			res.Warnings = append(res.Warnings, fmt.Sprintf("surcharge %q has unsupported kind %q, skipped", key, rule.Kind))
			continue
		}

		target, ok := res.targetValue(rule.Target)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("surcharge %q targets unknown component %q, skipped", key, rule.Target))
			continue
		}

		amount := target * (rule.Value - 1)
		res.Surcharges = append(res.Surcharges, SurchargeDetail{
			Description: rule.Description,
			Amount:      amount,
		})
		res.TotalSurchargeCost += amount
		res.distribute(rule.Target, target, amount)
	}
	return nil
}

// targetValue resolves a surcharge target name to the already-computed
// cost component it multiplies against.
func (r *Result) targetValue(target string) (float64, bool) {
	switch target {
	case TargetMaterialCost:
		return r.DirectMaterialCost, true
	case TargetLaborCost:
		return r.DirectLaborCost, true
	case TargetEquipmentCost:
		return r.DirectEquipmentCost, true
	case TargetTotalCost:
		return r.TotalDirectCost, true
	}
	return 0, false
}

// distribute spreads a surcharge amount across work categories in
// proportion to each category's share of the targeted component. A zero
// component distributes nothing.
func (r *Result) distribute(target string, targetTotal, amount float64) {
	if targetTotal == 0 {
		return
	}
	for i := range r.Categories {
		var share float64
		switch target {
		case TargetMaterialCost:
			share = r.Categories[i].MaterialCost
		case TargetLaborCost:
			share = r.Categories[i].LaborCost
		case TargetEquipmentCost:
			share = r.Categories[i].EquipmentCost
		case TargetTotalCost:
			share = r.Categories[i].TotalCost
		}
		r.Categories[i].TotalCost += amount * (share / targetTotal)
	}
}

func applyOverheads(src Source, res *Result) error {
	rules, err := src.OverheadRules()
	if err != nil {
		return fmt.Errorf("resolve overhead rules: %w", err)
	}

	bases := map[string]float64{
		BasisDirectMaterial:  res.DirectMaterialCost,
		BasisDirectLabor:     res.DirectLaborCost,
		BasisDirectEquipment: res.DirectEquipmentCost,
		BasisTotalDirect:     res.TotalDirectCost,
	}

	for _, rule := range rules {
		basis, ok := bases[rule.Basis]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("overhead %q uses unknown basis %q, skipped", rule.Name, rule.Basis))
			continue
		}

		// The only rounding point in the whole calculation: overhead
		// amounts round to the nearest currency unit.
		amount := math.Round(basis * rule.Rate)
		res.Overheads = append(res.Overheads, OverheadDetail{Name: rule.Name, Amount: amount})
		res.TotalOverheadCost += amount
	}
	return nil
}

func distinctItemIDs(rules []UnitPriceRule) []string {
	seen := make(map[string]bool, len(rules))
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		if seen[r.ItemID] {
			continue
		}
		seen[r.ItemID] = true
		ids = append(ids, r.ItemID)
	}
	return ids
}
