// Package rates is the sqlite-backed rate book: the price catalog and the
// unit-price, surcharge and overhead rule tables the estimate engine
// reads from.
package rates

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/owrk/linercost/internal/estimate"
)

// Store exposes the rate book over a sql.DB. It implements
// estimate.Source.
type Store struct {
	db *sql.DB
}

// New returns a Store reading and writing the given database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RulesFor returns every unit-price rule for the pipe type whose diameter
// range contains diameter. Ordering is stable (work category, then
// insertion order) so estimates are deterministic.
func (s *Store) RulesFor(pipeType estimate.PipeType, diameter float64) ([]estimate.UnitPriceRule, error) {
	rows, err := s.db.Query(`
		SELECT pipe_type, diameter_min, diameter_max, work_category, item_id, quantity_per_meter
		FROM unit_price_rules
		WHERE pipe_type = ? AND diameter_min <= ? AND diameter_max >= ?
		ORDER BY work_category, id
	`, string(pipeType), diameter, diameter)
	if err != nil {
		return nil, fmt.Errorf("query unit-price rules: %w", err)
	}
	defer rows.Close()

	var rules []estimate.UnitPriceRule
	for rows.Next() {
		var r estimate.UnitPriceRule
		if err := rows.Scan(&r.PipeType, &r.DiameterMin, &r.DiameterMax, &r.WorkCategory, &r.ItemID, &r.QuantityPerMeter); err != nil {
			return nil, fmt.Errorf("scan unit-price rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unit-price rules: %w", err)
	}

	return rules, nil
}

// Prices fetches the requested price entries in one query. Missing ids
// are simply absent from the returned map; the engine decides whether
// that is an integrity failure.
func (s *Store) Prices(itemIDs []string) (map[string]estimate.PriceEntry, error) {
	prices := make(map[string]estimate.PriceEntry, len(itemIDs))
	if len(itemIDs) == 0 {
		return prices, nil
	}

	query := `
		SELECT id, name, unit, unit_price, resource_type
		FROM price_entries
		WHERE id IN (?` + repeatPlaceholder(len(itemIDs)-1) + `)
	`
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p estimate.PriceEntry
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.UnitPrice, &p.Type); err != nil {
			return nil, fmt.Errorf("scan price entry: %w", err)
		}
		prices[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price entries: %w", err)
	}

	return prices, nil
}

// SurchargeFor returns the surcharge rule stored for a condition key, or
// nil when none exists.
func (s *Store) SurchargeFor(conditionKey string) (*estimate.SurchargeRule, error) {
	var r estimate.SurchargeRule
	err := s.db.QueryRow(`
		SELECT condition_key, description, kind, value, target
		FROM surcharge_rules
		WHERE condition_key = ?
	`, conditionKey).Scan(&r.Condition, &r.Description, &r.Kind, &r.Value, &r.Target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query surcharge rule: %w", err)
	}
	return &r, nil
}

// OverheadRules returns all overhead rules in their configured order.
func (s *Store) OverheadRules() ([]estimate.OverheadRule, error) {
	rows, err := s.db.Query(`
		SELECT name, basis, rate
		FROM overhead_rules
		ORDER BY sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query overhead rules: %w", err)
	}
	defer rows.Close()

	var rules []estimate.OverheadRule
	for rows.Next() {
		var r estimate.OverheadRule
		if err := rows.Scan(&r.Name, &r.Basis, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan overhead rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overhead rules: %w", err)
	}

	return rules, nil
}

// ListPrices returns the full price catalog for inspection endpoints.
func (s *Store) ListPrices() ([]estimate.PriceEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, name, unit, unit_price, resource_type
		FROM price_entries
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query price entries: %w", err)
	}
	defer rows.Close()

	prices := make([]estimate.PriceEntry, 0)
	for rows.Next() {
		var p estimate.PriceEntry
		if err := rows.Scan(&p.ID, &p.Name, &p.Unit, &p.UnitPrice, &p.Type); err != nil {
			return nil, fmt.Errorf("scan price entry: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price entries: %w", err)
	}

	return prices, nil
}

// ListSurcharges returns every surcharge rule.
func (s *Store) ListSurcharges() ([]estimate.SurchargeRule, error) {
	rows, err := s.db.Query(`
		SELECT condition_key, description, kind, value, target
		FROM surcharge_rules
		ORDER BY condition_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query surcharge rules: %w", err)
	}
	defer rows.Close()

	rules := make([]estimate.SurchargeRule, 0)
	for rows.Next() {
		var r estimate.SurchargeRule
		if err := rows.Scan(&r.Condition, &r.Description, &r.Kind, &r.Value, &r.Target); err != nil {
			return nil, fmt.Errorf("scan surcharge rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate surcharge rules: %w", err)
	}

	return rules, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
