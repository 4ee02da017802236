package estimate

// PipeType classifies the pipe material a unit-price rule applies to.
type PipeType string

const (
	PipeSteel   PipeType = "steel"
	PipeDuctile PipeType = "ductile"
)

// ValidPipeType reports whether p is one of the supported pipe types.
func ValidPipeType(p PipeType) bool {
	return p == PipeSteel || p == PipeDuctile
}

// ResourceType classifies a priced item as material, labor or equipment.
type ResourceType string

const (
	ResourceMaterial  ResourceType = "material"
	ResourceLabor     ResourceType = "labor"
	ResourceEquipment ResourceType = "equipment"
)

// ValidResourceType reports whether r is one of the supported resource types.
func ValidResourceType(r ResourceType) bool {
	return r == ResourceMaterial || r == ResourceLabor || r == ResourceEquipment
}

// SurchargeKind selects how a surcharge rule is applied. Only the
// percentage kind is implemented; fixed is reserved for future rules.
type SurchargeKind string

const (
	SurchargePercentage SurchargeKind = "percentage"
	SurchargeFixed      SurchargeKind = "fixed"
)

// Condition keys derived from job options. Surcharge rules are stored
// against these keys.
const ConditionRiser = "riser"

// CategoryOther is the work category assigned to rules that carry none.
const CategoryOther = "기타"

// Surcharge targets and overhead bases name the cost aggregates a rule
// multiplies against.
const (
	BasisDirectMaterial  = "direct_material_cost"
	BasisDirectLabor     = "direct_labor_cost"
	BasisDirectEquipment = "direct_equipment_cost"
	BasisTotalDirect     = "total_direct_cost"

	TargetMaterialCost  = "material_cost"
	TargetLaborCost     = "labor_cost"
	TargetEquipmentCost = "equipment_cost"
	TargetTotalCost     = "total_direct_cost"
)

// PriceEntry is one row of the price catalog: the unit price of a single
// material, labor or equipment item.
type PriceEntry struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Unit      string       `json:"unit"`
	UnitPrice float64      `json:"unit_price"`
	Type      ResourceType `json:"type"`
}

// UnitPriceRule states how much of one item is consumed per linear meter
// of installation for a pipe type within a diameter range (inclusive, mm).
// Every rule whose range contains the queried diameter applies; their
// union is the bill of resources for one meter.
type UnitPriceRule struct {
	PipeType         PipeType `json:"pipe_type"`
	DiameterMin      float64  `json:"diameter_min"`
	DiameterMax      float64  `json:"diameter_max"`
	WorkCategory     string   `json:"work_category"`
	ItemID           string   `json:"item_id"`
	QuantityPerMeter float64  `json:"quantity_per_meter"`
}

// Category returns the rule's work category, falling back to
// CategoryOther when unset.
func (r UnitPriceRule) Category() string {
	if r.WorkCategory == "" {
		return CategoryOther
	}
	return r.WorkCategory
}

// SurchargeRule is a conditional increase applied to one cost component
// when the job activates its condition key. Value is a multiplier: 1.3
// means +30% of the targeted component.
type SurchargeRule struct {
	Condition   string        `json:"condition"`
	Description string        `json:"description"`
	Kind        SurchargeKind `json:"kind"`
	Value       float64       `json:"value"`
	Target      string        `json:"target"`
}

// OverheadRule is an indirect-cost item computed as a rate against one of
// the direct-cost bases. Applied unconditionally to every estimate.
type OverheadRule struct {
	Name  string  `json:"name"`
	Basis string  `json:"basis"`
	Rate  float64 `json:"rate"`
}

// Source is the read-only rate-book access the engine depends on. A nil
// surcharge result means no rule exists for that condition key.
type Source interface {
	RulesFor(pipeType PipeType, diameter float64) ([]UnitPriceRule, error)
	Prices(itemIDs []string) (map[string]PriceEntry, error)
	SurchargeFor(conditionKey string) (*SurchargeRule, error)
	OverheadRules() ([]OverheadRule, error)
}
