package enums

// BrewingMethod is how the customer prepares the coffee.
type BrewingMethod string

const (
	BrewingMethodEspresso    BrewingMethod = "espresso"
	BrewingMethodAeropress   BrewingMethod = "aeropress"
	BrewingMethodPourOver    BrewingMethod = "pour_over"
	BrewingMethodDrip        BrewingMethod = "drip"
	BrewingMethodFrenchPress BrewingMethod = "french_press"
	BrewingMethodColdBrew    BrewingMethod = "cold_brew"
)

// Origin is the growing region of a bean.
type Origin string

const (
	OriginEthiopian  Origin = "ethiopian"
	OriginColombian  Origin = "colombian"
	OriginCostaRican Origin = "costa_rican"
	OriginBrazilian  Origin = "brazilian"
)

type RoastLevel string

const (
	RoastLevelLight  RoastLevel = "light"
	RoastLevelMedium RoastLevel = "medium"
	RoastLevelDark   RoastLevel = "dark"
)

type GrindSize string

const (
	GrindSizeWholeBean GrindSize = "whole_bean"
	GrindSizeCoarse    GrindSize = "coarse"
	GrindSizeMedium    GrindSize = "medium"
	GrindSizeFine      GrindSize = "fine"
)

var (
	brewingMethods = valueSet[BrewingMethod]{
		BrewingMethodEspresso, BrewingMethodAeropress, BrewingMethodPourOver,
		BrewingMethodDrip, BrewingMethodFrenchPress, BrewingMethodColdBrew,
	}
	origins     = valueSet[Origin]{OriginEthiopian, OriginColombian, OriginCostaRican, OriginBrazilian}
	roastLevels = valueSet[RoastLevel]{RoastLevelLight, RoastLevelMedium, RoastLevelDark}
	grindSizes  = valueSet[GrindSize]{GrindSizeWholeBean, GrindSizeCoarse, GrindSizeMedium, GrindSizeFine}
)

func (b BrewingMethod) String() string { return string(b) }
func (b BrewingMethod) IsValid() bool  { return brewingMethods.contains(b) }

func ParseBrewingMethod(value string) (BrewingMethod, error) {
	return brewingMethods.parse("brewing method", value)
}

// BrewingMethods lists every method in menu order.
func BrewingMethods() []BrewingMethod { return brewingMethods.list() }

func (o Origin) String() string { return string(o) }
func (o Origin) IsValid() bool  { return origins.contains(o) }

func ParseOrigin(value string) (Origin, error) {
	return origins.parse("origin", value)
}

func Origins() []Origin { return origins.list() }

func (r RoastLevel) String() string { return string(r) }
func (r RoastLevel) IsValid() bool  { return roastLevels.contains(r) }

func ParseRoastLevel(value string) (RoastLevel, error) {
	return roastLevels.parse("roast level", value)
}

func RoastLevels() []RoastLevel { return roastLevels.list() }

func (g GrindSize) String() string { return string(g) }
func (g GrindSize) IsValid() bool  { return grindSizes.contains(g) }

func ParseGrindSize(value string) (GrindSize, error) {
	return grindSizes.parse("grind size", value)
}

func GrindSizes() []GrindSize { return grindSizes.list() }
