package estimate

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

type fakeSource struct {
	rules      []UnitPriceRule
	prices     map[string]PriceEntry
	surcharges map[string]SurchargeRule
	overheads  []OverheadRule
	rulesErr   error
}

func (f *fakeSource) RulesFor(pipeType PipeType, diameter float64) ([]UnitPriceRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	var matched []UnitPriceRule
	for _, r := range f.rules {
		if r.PipeType == pipeType && diameter >= r.DiameterMin && diameter <= r.DiameterMax {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (f *fakeSource) Prices(itemIDs []string) (map[string]PriceEntry, error) {
	out := make(map[string]PriceEntry, len(itemIDs))
	for _, id := range itemIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeSource) SurchargeFor(conditionKey string) (*SurchargeRule, error) {
	if r, ok := f.surcharges[conditionKey]; ok {
		return &r, nil
	}
	return nil, nil
}

func (f *fakeSource) OverheadRules() ([]OverheadRule, error) {
	return f.overheads, nil
}

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestCalculate_SingleMaterialRule(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, WorkCategory: "관부설", ItemID: "M01", QuantityPerMeter: 2},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", Name: "PE 라이너", Unit: "m", UnitPrice: 1000, Type: ResourceMaterial},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeDuctile, Diameter: 150, Length: 10})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	nearlyEqual(t, "directMaterialCost", res.DirectMaterialCost, 20000)
	nearlyEqual(t, "directLaborCost", res.DirectLaborCost, 0)
	nearlyEqual(t, "totalDirectCost", res.TotalDirectCost, 20000)
	nearlyEqual(t, "totalCost", res.TotalCost, 20000)

	if len(res.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(res.Items))
	}
	item := res.Items[0]
	if item.ItemID != "M01" || item.WorkCategory != "관부설" {
		t.Fatalf("unexpected line item: %+v", item)
	}
	nearlyEqual(t, "item totalPrice", item.TotalPrice, 2000)
}

func TestCalculate_RiserSurchargeOnLabor(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, WorkCategory: "관부설", ItemID: "M01", QuantityPerMeter: 2},
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, WorkCategory: "관부설", ItemID: "L01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 1000, Type: ResourceMaterial},
			"L01": {ID: "L01", UnitPrice: 500, Type: ResourceLabor},
		},
		surcharges: map[string]SurchargeRule{
			ConditionRiser: {Condition: ConditionRiser, Description: "입상관 할증", Kind: SurchargePercentage, Value: 1.3, Target: TargetLaborCost},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeDuctile, Diameter: 150, Length: 10, Riser: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	nearlyEqual(t, "directLaborCost", res.DirectLaborCost, 5000)
	nearlyEqual(t, "totalSurchargeCost", res.TotalSurchargeCost, 1500)
	if len(res.Surcharges) != 1 || res.Surcharges[0].Description != "입상관 할증" {
		t.Fatalf("unexpected surcharges: %+v", res.Surcharges)
	}
	nearlyEqual(t, "totalCost", res.TotalCost, 20000+5000+1500)

	// The single category absorbs the whole distributed surcharge.
	if len(res.Categories) != 1 {
		t.Fatalf("expected 1 category, got %d", len(res.Categories))
	}
	nearlyEqual(t, "category totalCost", res.Categories[0].TotalCost, 26500)
}

func TestCalculate_NoSurchargeWhenRiserOff(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "L01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"L01": {ID: "L01", UnitPrice: 500, Type: ResourceLabor},
		},
		surcharges: map[string]SurchargeRule{
			ConditionRiser: {Condition: ConditionRiser, Kind: SurchargePercentage, Value: 1.3, Target: TargetLaborCost},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 5})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if len(res.Surcharges) != 0 {
		t.Fatalf("expected no surcharges, got %+v", res.Surcharges)
	}
	nearlyEqual(t, "totalSurchargeCost", res.TotalSurchargeCost, 0)
}

func TestCalculate_SurchargeDistributedProportionally(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "토공", ItemID: "L01", QuantityPerMeter: 3},
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "관부설접합", ItemID: "L02", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"L01": {ID: "L01", UnitPrice: 100, Type: ResourceLabor},
			"L02": {ID: "L02", UnitPrice: 100, Type: ResourceLabor},
		},
		surcharges: map[string]SurchargeRule{
			ConditionRiser: {Condition: ConditionRiser, Kind: SurchargePercentage, Value: 1.2, Target: TargetLaborCost},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 1, Riser: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// Labor 400 total, surcharge 80, split 3:1 across the categories.
	nearlyEqual(t, "totalSurchargeCost", res.TotalSurchargeCost, 80)
	nearlyEqual(t, "토공 totalCost", res.Categories[0].TotalCost, 300+60)
	nearlyEqual(t, "관부설접합 totalCost", res.Categories[1].TotalCost, 100+20)

	var categorySum float64
	for _, c := range res.Categories {
		categorySum += c.TotalCost
	}
	nearlyEqual(t, "category sum", categorySum, res.TotalDirectCost+res.TotalSurchargeCost)
}

func TestCalculate_OverheadRoundsPerRule(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "M01", QuantityPerMeter: 1},
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "L01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 333, Type: ResourceMaterial},
			"L01": {ID: "L01", UnitPrice: 111, Type: ResourceLabor},
		},
		overheads: []OverheadRule{
			{Name: "산재보험료", Basis: BasisDirectLabor, Rate: 0.037},
			{Name: "이윤", Basis: BasisTotalDirect, Rate: 0.15},
			{Name: "기타경비", Basis: BasisDirectMaterial, Rate: 0},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 7})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// labor = 777, material = 2331, total direct = 3108.
	want := []OverheadDetail{
		{Name: "산재보험료", Amount: math.Round(777 * 0.037)},
		{Name: "이윤", Amount: math.Round(3108 * 0.15)},
		{Name: "기타경비", Amount: 0},
	}
	if !reflect.DeepEqual(res.Overheads, want) {
		t.Fatalf("overheads = %+v, want %+v", res.Overheads, want)
	}

	var sum float64
	for _, o := range res.Overheads {
		sum += o.Amount
	}
	nearlyEqual(t, "totalOverheadCost", res.TotalOverheadCost, sum)
	nearlyEqual(t, "totalCost", res.TotalCost, res.TotalDirectCost+res.TotalOverheadCost)
}

func TestCalculate_UnknownOverheadBasisIsSkippedWithWarning(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "M01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 100, Type: ResourceMaterial},
		},
		overheads: []OverheadRule{
			{Name: "미지정 경비", Basis: "direct_total_cost", Rate: 0.1},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if len(res.Overheads) != 0 {
		t.Fatalf("expected no overhead details, got %+v", res.Overheads)
	}
	nearlyEqual(t, "totalOverheadCost", res.TotalOverheadCost, 0)
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
}

func TestCalculate_ScalesLinearlyWithLength(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, ItemID: "M01", QuantityPerMeter: 1.5},
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, ItemID: "E01", QuantityPerMeter: 0.25},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 820, Type: ResourceMaterial},
			"E01": {ID: "E01", UnitPrice: 4400, Type: ResourceEquipment},
		},
	}

	one, err := Calculate(src, Options{PipeType: PipeDuctile, Diameter: 150, Length: 1})
	if err != nil {
		t.Fatalf("Calculate length=1: %v", err)
	}
	many, err := Calculate(src, Options{PipeType: PipeDuctile, Diameter: 150, Length: 37})
	if err != nil {
		t.Fatalf("Calculate length=37: %v", err)
	}

	nearlyEqual(t, "material scaling", many.DirectMaterialCost, one.DirectMaterialCost*37)
	nearlyEqual(t, "equipment scaling", many.DirectEquipmentCost, one.DirectEquipmentCost*37)
	nearlyEqual(t, "direct sum", many.TotalDirectCost, many.DirectMaterialCost+many.DirectLaborCost+many.DirectEquipmentCost)
}

func TestCalculate_Deterministic(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "토공", ItemID: "L01", QuantityPerMeter: 2},
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "관부설접합", ItemID: "M01", QuantityPerMeter: 1},
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "토공", ItemID: "E01", QuantityPerMeter: 0.5},
		},
		prices: map[string]PriceEntry{
			"L01": {ID: "L01", UnitPrice: 700, Type: ResourceLabor},
			"M01": {ID: "M01", UnitPrice: 350, Type: ResourceMaterial},
			"E01": {ID: "E01", UnitPrice: 9000, Type: ResourceEquipment},
		},
		overheads: []OverheadRule{
			{Name: "안전관리비", Basis: BasisDirectLabor, Rate: 0.018},
		},
	}
	opts := Options{PipeType: PipeSteel, Diameter: 100, Length: 12, Riser: true}

	first, err := Calculate(src, opts)
	if err != nil {
		t.Fatalf("first Calculate: %v", err)
	}
	second, err := Calculate(src, opts)
	if err != nil {
		t.Fatalf("second Calculate: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between identical calls:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCalculate_NoApplicableRule(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "M01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 100, Type: ResourceMaterial},
		},
	}

	_, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 99999, Length: 10})
	var noRule *NoApplicableRuleError
	if !errors.As(err, &noRule) {
		t.Fatalf("expected NoApplicableRuleError, got %v", err)
	}
	if noRule.PipeType != PipeSteel || noRule.Diameter != 99999 {
		t.Fatalf("unexpected error details: %+v", noRule)
	}
}

func TestCalculate_MissingPriceIsDataIntegrityError(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, ItemID: "M01", QuantityPerMeter: 1},
			{PipeType: PipeDuctile, DiameterMin: 100, DiameterMax: 200, ItemID: "GHOST", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 100, Type: ResourceMaterial},
		},
	}

	_, err := Calculate(src, Options{PipeType: PipeDuctile, Diameter: 150, Length: 10})
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}
	if integrity.ItemID != "GHOST" {
		t.Fatalf("expected offending item GHOST, got %q", integrity.ItemID)
	}
}

func TestCalculate_InvalidInput(t *testing.T) {
	src := &fakeSource{}

	cases := []struct {
		name string
		opts Options
	}{
		{"unknown pipe type", Options{PipeType: "copper", Diameter: 100, Length: 10}},
		{"zero diameter", Options{PipeType: PipeSteel, Diameter: 0, Length: 10}},
		{"negative length", Options{PipeType: PipeSteel, Diameter: 100, Length: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(src, tc.opts)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
		})
	}
}

func TestCalculate_SourceErrorPropagates(t *testing.T) {
	infraErr := errors.New("connection refused")
	src := &fakeSource{rulesErr: infraErr}

	_, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 10})
	if !errors.Is(err, infraErr) {
		t.Fatalf("expected wrapped infrastructure error, got %v", err)
	}

	var invalid *InvalidInputError
	var noRule *NoApplicableRuleError
	if errors.As(err, &invalid) || errors.As(err, &noRule) {
		t.Fatalf("infrastructure error must not classify as a user error: %v", err)
	}
}

func TestCalculate_ZeroTargetDistributesNothing(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, WorkCategory: "토공", ItemID: "M01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 100, Type: ResourceMaterial},
		},
		surcharges: map[string]SurchargeRule{
			ConditionRiser: {Condition: ConditionRiser, Kind: SurchargePercentage, Value: 1.3, Target: TargetLaborCost},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 10, Riser: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	// No labor cost: the surcharge amount is zero and no category share moves.
	nearlyEqual(t, "totalSurchargeCost", res.TotalSurchargeCost, 0)
	nearlyEqual(t, "category totalCost", res.Categories[0].TotalCost, 1000)
}

func TestCalculate_DefaultCategoryBucket(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "M01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"M01": {ID: "M01", UnitPrice: 100, Type: ResourceMaterial},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if res.Categories[0].Category != CategoryOther {
		t.Fatalf("expected default category %q, got %q", CategoryOther, res.Categories[0].Category)
	}
	if res.Items[0].WorkCategory != CategoryOther {
		t.Fatalf("expected line item category %q, got %q", CategoryOther, res.Items[0].WorkCategory)
	}
}

func TestCalculate_FixedSurchargeKindSkippedWithWarning(t *testing.T) {
	src := &fakeSource{
		rules: []UnitPriceRule{
			{PipeType: PipeSteel, DiameterMin: 80, DiameterMax: 150, ItemID: "L01", QuantityPerMeter: 1},
		},
		prices: map[string]PriceEntry{
			"L01": {ID: "L01", UnitPrice: 500, Type: ResourceLabor},
		},
		surcharges: map[string]SurchargeRule{
			ConditionRiser: {Condition: ConditionRiser, Kind: SurchargeFixed, Value: 30000, Target: TargetLaborCost},
		},
	}

	res, err := Calculate(src, Options{PipeType: PipeSteel, Diameter: 100, Length: 10, Riser: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if len(res.Surcharges) != 0 || res.TotalSurchargeCost != 0 {
		t.Fatalf("fixed surcharge must be skipped, got %+v", res.Surcharges)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", res.Warnings)
	}
}
