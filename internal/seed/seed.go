// Package seed installs the standard PE-Liner rate book on startup so a
// fresh database can produce estimates immediately. Every insert is
// guarded by an existence check, so re-running the seed is a no-op.
package seed

import (
	"database/sql"
	"fmt"

	"github.com/owrk/linercost/internal/estimate"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

var seedPrices = []estimate.PriceEntry{
	{ID: "M01", Name: "PE 라이너", Unit: "m", UnitPrice: 15200, Type: estimate.ResourceMaterial},
	{ID: "M02", Name: "접합 슬리브", Unit: "개", UnitPrice: 3400, Type: estimate.ResourceMaterial},
	{ID: "M03", Name: "에폭시 수지", Unit: "kg", UnitPrice: 8600, Type: estimate.ResourceMaterial},
	{ID: "L01", Name: "배관공", Unit: "인", UnitPrice: 185000, Type: estimate.ResourceLabor},
	{ID: "L02", Name: "보통인부", Unit: "인", UnitPrice: 150000, Type: estimate.ResourceLabor},
	{ID: "E01", Name: "라이너 반전기", Unit: "hr", UnitPrice: 42000, Type: estimate.ResourceEquipment},
	{ID: "E02", Name: "증기 양생기", Unit: "hr", UnitPrice: 36000, Type: estimate.ResourceEquipment},
}

var seedRules = []estimate.UnitPriceRule{
	// Steel pipe, 80–200mm.
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "토공", ItemID: "L02", QuantityPerMeter: 0.021},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "M01", QuantityPerMeter: 1.05},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "M02", QuantityPerMeter: 0.4},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "L01", QuantityPerMeter: 0.038},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "M03", QuantityPerMeter: 0.62},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "E01", QuantityPerMeter: 0.05},
	{PipeType: estimate.PipeSteel, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "E02", QuantityPerMeter: 0.04},
	// Steel pipe, 201–350mm.
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "토공", ItemID: "L02", QuantityPerMeter: 0.032},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "M01", QuantityPerMeter: 1.05},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "M02", QuantityPerMeter: 0.5},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "L01", QuantityPerMeter: 0.055},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "M03", QuantityPerMeter: 0.94},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "E01", QuantityPerMeter: 0.07},
	{PipeType: estimate.PipeSteel, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "E02", QuantityPerMeter: 0.06},
	// Ductile pipe, 80–200mm.
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "토공", ItemID: "L02", QuantityPerMeter: 0.024},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "M01", QuantityPerMeter: 1.08},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "M02", QuantityPerMeter: 0.4},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "관부설접합", ItemID: "L01", QuantityPerMeter: 0.042},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "M03", QuantityPerMeter: 0.66},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "E01", QuantityPerMeter: 0.05},
	{PipeType: estimate.PipeDuctile, DiameterMin: 80, DiameterMax: 200, WorkCategory: "라이닝", ItemID: "E02", QuantityPerMeter: 0.04},
	// Ductile pipe, 201–350mm.
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "토공", ItemID: "L02", QuantityPerMeter: 0.036},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "M01", QuantityPerMeter: 1.08},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "M02", QuantityPerMeter: 0.5},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "관부설접합", ItemID: "L01", QuantityPerMeter: 0.06},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "M03", QuantityPerMeter: 0.98},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "E01", QuantityPerMeter: 0.07},
	{PipeType: estimate.PipeDuctile, DiameterMin: 201, DiameterMax: 350, WorkCategory: "라이닝", ItemID: "E02", QuantityPerMeter: 0.06},
}

var seedSurcharges = []estimate.SurchargeRule{
	{Condition: estimate.ConditionRiser, Description: "입상관 시공 할증", Kind: estimate.SurchargePercentage, Value: 1.3, Target: estimate.TargetLaborCost},
}

var seedOverheads = []estimate.OverheadRule{
	{Name: "산재보험료", Basis: estimate.BasisDirectLabor, Rate: 0.037},
	{Name: "고용보험료", Basis: estimate.BasisDirectLabor, Rate: 0.011},
	{Name: "안전관리비", Basis: estimate.BasisTotalDirect, Rate: 0.018},
	{Name: "기타경비", Basis: estimate.BasisTotalDirect, Rate: 0.032},
	{Name: "이윤", Basis: estimate.BasisTotalDirect, Rate: 0.15},
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := ensurePrices(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRules(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureSurcharges(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureOverheads(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensurePrices(tx *sql.Tx, stats *Stats) error {
	for _, p := range seedPrices {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM price_entries WHERE id = ? LIMIT 1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check price entry %q: %w", p.ID, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO price_entries (id, name, unit, unit_price, resource_type)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Unit, p.UnitPrice, string(p.Type)); err != nil {
			return fmt.Errorf("insert price entry %q: %w", p.ID, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureRules(tx *sql.Tx, stats *Stats) error {
	for _, r := range seedRules {
		var exists bool
		if err := tx.QueryRow(`
			SELECT EXISTS(
				SELECT 1
				FROM unit_price_rules
				WHERE pipe_type = ? AND diameter_min = ? AND diameter_max = ? AND item_id = ?
				LIMIT 1
			)
		`, string(r.PipeType), r.DiameterMin, r.DiameterMax, r.ItemID).Scan(&exists); err != nil {
			return fmt.Errorf("check unit-price rule for item %q: %w", r.ItemID, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO unit_price_rules (pipe_type, diameter_min, diameter_max, work_category, item_id, quantity_per_meter)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(r.PipeType), r.DiameterMin, r.DiameterMax, r.WorkCategory, r.ItemID, r.QuantityPerMeter); err != nil {
			return fmt.Errorf("insert unit-price rule for item %q: %w", r.ItemID, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureSurcharges(tx *sql.Tx, stats *Stats) error {
	for _, r := range seedSurcharges {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM surcharge_rules WHERE condition_key = ? LIMIT 1)`, r.Condition).Scan(&exists); err != nil {
			return fmt.Errorf("check surcharge rule %q: %w", r.Condition, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO surcharge_rules (condition_key, description, kind, value, target)
			VALUES (?, ?, ?, ?, ?)
		`, r.Condition, r.Description, string(r.Kind), r.Value, r.Target); err != nil {
			return fmt.Errorf("insert surcharge rule %q: %w", r.Condition, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureOverheads(tx *sql.Tx, stats *Stats) error {
	for i, r := range seedOverheads {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM overhead_rules WHERE name = ? LIMIT 1)`, r.Name).Scan(&exists); err != nil {
			return fmt.Errorf("check overhead rule %q: %w", r.Name, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO overhead_rules (name, basis, rate, sort_order)
			VALUES (?, ?, ?, ?)
		`, r.Name, r.Basis, r.Rate, i); err != nil {
			return fmt.Errorf("insert overhead rule %q: %w", r.Name, err)
		}
		stats.Inserts++
	}
	return nil
}
