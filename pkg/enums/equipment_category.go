package enums

import "fmt"

// EquipmentCategory classifies rentable heavy equipment.
type EquipmentCategory string

const (
	CategoryExcavator     EquipmentCategory = "EXCAVATOR"
	CategoryCrane         EquipmentCategory = "CRANE"
	CategoryLoader        EquipmentCategory = "LOADER"
	CategoryBulldozer     EquipmentCategory = "BULLDOZER"
	CategoryForklift      EquipmentCategory = "FORKLIFT"
	CategoryCompactor     EquipmentCategory = "COMPACTOR"
	CategoryGenerator     EquipmentCategory = "GENERATOR"
	CategoryScaffolding   EquipmentCategory = "SCAFFOLDING"
	CategoryConcreteMixer EquipmentCategory = "CONCRETE_MIXER"
	CategoryDumpTruck     EquipmentCategory = "DUMP_TRUCK"
	CategoryOther         EquipmentCategory = "OTHER"
)

var validEquipmentCategories = []EquipmentCategory{
	CategoryExcavator,
	CategoryCrane,
	CategoryLoader,
	CategoryBulldozer,
	CategoryForklift,
	CategoryCompactor,
	CategoryGenerator,
	CategoryScaffolding,
	CategoryConcreteMixer,
	CategoryDumpTruck,
	CategoryOther,
}

// EquipmentCategories returns every recognized category.
func EquipmentCategories() []EquipmentCategory {
	out := make([]EquipmentCategory, len(validEquipmentCategories))
	copy(out, validEquipmentCategories)
	return out
}

// String implements fmt.Stringer.
func (c EquipmentCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known EquipmentCategory.
func (c EquipmentCategory) IsValid() bool {
	for _, candidate := range validEquipmentCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseEquipmentCategory converts raw input into an EquipmentCategory.
func ParseEquipmentCategory(value string) (EquipmentCategory, error) {
	for _, candidate := range validEquipmentCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid equipment category %q", value)
}
