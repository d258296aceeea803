package common

// EnergyMix This type is used to specify the energy mix and environmental impact of the supplied energy at a location or in a tariff.
type EnergyMix struct {
	IsGreenEnergy       bool                   `json:"is_green_energy" bson:"is_green_energy" validate:"required"`
	EnergySources       []*EnergySource        `json:"energy_sources,omitempty" bson:"energy_sources,omitempty" validate:"omitempty,dive"`
	EnvironmentalImpact []*EnvironmentalImpact `json:"environ_impact,omitempty" bson:"environ_impact,omitempty" validate:"omitempty,dive"`
	SupplierName        string                 `json:"supplier_name,omitempty" bson:"supplier_name,omitempty" validate:"omitempty,max=64"`
	EnergyProductName   string                 `json:"energy_product_name,omitempty" bson:"energy_product_name,omitempty" validate:"omitempty,max=64"`
}

// EnergySource Key-value pairs (enum + percentage) of energy sources. All given values should add up to 100 percent per category.
type EnergySource struct {
	Source     EnergySourceCategory `json:"source" bson:"source" validate:"required"`
	Percentage float64              `json:"percentage" bson:"percentage" validate:"required,min=0,max=100"`
}

// EnergySourceCategory Categories of energy sources.
type EnergySourceCategory string

const (
	SourceNuclear       EnergySourceCategory = "NUCLEAR"
	SourceGeneralFossil EnergySourceCategory = "GENERAL_FOSSIL"
	SourceCoal          EnergySourceCategory = "COAL"
	SourceGas           EnergySourceCategory = "GAS"
	SourceGeneralGreen  EnergySourceCategory = "GENERAL_GREEN"
	SourceSolar         EnergySourceCategory = "SOLAR"
	SourceWind          EnergySourceCategory = "WIND"
	SourceWater         EnergySourceCategory = "WATER"
)

// EnvironmentalImpact Key-value pairs (enum + amount) of waste and carbon dioxide emission in g/kWh.
type EnvironmentalImpact struct {
	Category EnvironmentalImpactCategory `json:"category" bson:"category" validate:"required"`
	Amount   float64                     `json:"amount" bson:"amount" validate:"required,min=0"`
}

// EnvironmentalImpactCategory Categories of environmental impact values.
type EnvironmentalImpactCategory string

const (
	ImpactNuclearWaste  EnvironmentalImpactCategory = "NUCLEAR_WASTE"
	ImpactCarbonDioxide EnvironmentalImpactCategory = "CARBON_DIOXIDE"
)
