package rates

import (
	"database/sql"
	"fmt"

	"github.com/owrk/linercost/internal/estimate"
)

// Book is a complete rate book to load in one shot: the unit of a
// reference-workbook import. A Replace either installs the whole book or
// leaves the database untouched.
type Book struct {
	Prices     []estimate.PriceEntry
	Rules      []estimate.UnitPriceRule
	Surcharges []estimate.SurchargeRule
	Overheads  []estimate.OverheadRule
}

// Counts reports how many rows a Replace installed.
type Counts struct {
	Prices     int `json:"prices"`
	Rules      int `json:"rules"`
	Surcharges int `json:"surcharges"`
	Overheads  int `json:"overheads"`
}

// Validate checks the book's internal consistency before it may be
// installed. Rules referencing unknown items are rejected here rather
// than left to surface as DataIntegrityError at estimate time.
func (b Book) Validate() error {
	priceIDs := make(map[string]bool, len(b.Prices))
	for _, p := range b.Prices {
		if p.ID == "" {
			return fmt.Errorf("price entry %q: empty id", p.Name)
		}
		if priceIDs[p.ID] {
			return fmt.Errorf("price entry %q: duplicate id", p.ID)
		}
		if p.UnitPrice < 0 {
			return fmt.Errorf("price entry %q: negative unit price", p.ID)
		}
		if !estimate.ValidResourceType(p.Type) {
			return fmt.Errorf("price entry %q: unknown resource type %q", p.ID, p.Type)
		}
		priceIDs[p.ID] = true
	}

	for i, r := range b.Rules {
		if !estimate.ValidPipeType(r.PipeType) {
			return fmt.Errorf("rule %d: unknown pipe type %q", i+1, r.PipeType)
		}
		if r.DiameterMin > r.DiameterMax {
			return fmt.Errorf("rule %d: diameter range [%v, %v] is inverted", i+1, r.DiameterMin, r.DiameterMax)
		}
		if r.QuantityPerMeter <= 0 {
			return fmt.Errorf("rule %d: quantity per meter must be positive", i+1)
		}
		if !priceIDs[r.ItemID] {
			return fmt.Errorf("rule %d: references item %q with no price entry", i+1, r.ItemID)
		}
	}

	conditions := make(map[string]bool, len(b.Surcharges))
	for _, r := range b.Surcharges {
		if r.Condition == "" {
			return fmt.Errorf("surcharge rule: empty condition key")
		}
		if conditions[r.Condition] {
			return fmt.Errorf("surcharge rule %q: duplicate condition key", r.Condition)
		}
		if r.Kind != estimate.SurchargePercentage && r.Kind != estimate.SurchargeFixed {
			return fmt.Errorf("surcharge rule %q: unknown kind %q", r.Condition, r.Kind)
		}
		// Percentage surcharges only model increases; discounts are not
		// part of the current cost model.
		if r.Kind == estimate.SurchargePercentage && r.Value < 1 {
			return fmt.Errorf("surcharge rule %q: percentage value %v is below 1", r.Condition, r.Value)
		}
		conditions[r.Condition] = true
	}

	names := make(map[string]bool, len(b.Overheads))
	for _, r := range b.Overheads {
		if r.Name == "" {
			return fmt.Errorf("overhead rule: empty name")
		}
		if names[r.Name] {
			return fmt.Errorf("overhead rule %q: duplicate name", r.Name)
		}
		if r.Rate < 0 {
			return fmt.Errorf("overhead rule %q: negative rate", r.Name)
		}
		names[r.Name] = true
	}

	return nil
}

// Replace swaps the entire rate book for the given one inside a single
// transaction.
func (s *Store) Replace(book Book) (Counts, error) {
	if err := book.Validate(); err != nil {
		return Counts{}, fmt.Errorf("validate rate book: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Counts{}, fmt.Errorf("begin replace transaction: %w", err)
	}

	counts, err := replaceAll(tx, book)
	if err != nil {
		_ = tx.Rollback()
		return Counts{}, err
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit replace transaction: %w", err)
	}

	return counts, nil
}

func replaceAll(tx *sql.Tx, book Book) (Counts, error) {
	for _, table := range []string{"unit_price_rules", "price_entries", "surcharge_rules", "overhead_rules"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return Counts{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	var counts Counts
	for _, p := range book.Prices {
		if _, err := tx.Exec(`
			INSERT INTO price_entries (id, name, unit, unit_price, resource_type)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Unit, p.UnitPrice, string(p.Type)); err != nil {
			return Counts{}, fmt.Errorf("insert price entry %q: %w", p.ID, err)
		}
		counts.Prices++
	}

	for _, r := range book.Rules {
		if _, err := tx.Exec(`
			INSERT INTO unit_price_rules (pipe_type, diameter_min, diameter_max, work_category, item_id, quantity_per_meter)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(r.PipeType), r.DiameterMin, r.DiameterMax, r.WorkCategory, r.ItemID, r.QuantityPerMeter); err != nil {
			return Counts{}, fmt.Errorf("insert unit-price rule for item %q: %w", r.ItemID, err)
		}
		counts.Rules++
	}

	for _, r := range book.Surcharges {
		if _, err := tx.Exec(`
			INSERT INTO surcharge_rules (condition_key, description, kind, value, target)
			VALUES (?, ?, ?, ?, ?)
		`, r.Condition, r.Description, string(r.Kind), r.Value, r.Target); err != nil {
			return Counts{}, fmt.Errorf("insert surcharge rule %q: %w", r.Condition, err)
		}
		counts.Surcharges++
	}

	for i, r := range book.Overheads {
		if _, err := tx.Exec(`
			INSERT INTO overhead_rules (name, basis, rate, sort_order)
			VALUES (?, ?, ?, ?)
		`, r.Name, r.Basis, r.Rate, i); err != nil {
			return Counts{}, fmt.Errorf("insert overhead rule %q: %w", r.Name, err)
		}
		counts.Overheads++
	}

	return counts, nil
}
