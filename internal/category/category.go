package category

import "fmt"

// Category is one of the fixed reimbursement categories.
type Category string

const (
	MealsAndEntertainment    Category = "Meals and Entertainment"
	Transportation           Category = "Transportation"
	Accommodation            Category = "Accommodation"
	OfficeSupplies           Category = "Office Supplies"
	TrainingAndDevelopment   Category = "Training and Development"
	SoftwareAndSubscriptions Category = "Software and Subscriptions"
	Marketing                Category = "Marketing"
	Other                    Category = "Other"
)

var all = []Category{
	MealsAndEntertainment,
	Transportation,
	Accommodation,
	OfficeSupplies,
	TrainingAndDevelopment,
	SoftwareAndSubscriptions,
	Marketing,
	Other,
}

var descriptions = map[Category]string{
	MealsAndEntertainment:    "Client meals, team meals and business entertainment",
	Transportation:           "Flights, trains, taxis, fuel and parking",
	Accommodation:            "Hotels and lodging while travelling",
	OfficeSupplies:           "Stationery, peripherals and small equipment",
	TrainingAndDevelopment:   "Courses, certifications, books and conferences",
	SoftwareAndSubscriptions: "Software licences and online services",
	Marketing:                "Promotional material and campaign spend",
	Other:                    "Anything that fits no other category",
}

// All returns the categories in display order.
func All() []Category {
	out := make([]Category, len(all))
	copy(out, all)
	return out
}

// Names returns All as plain strings.
func Names() []string {
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = string(c)
	}
	return out
}

func Parse(s string) (Category, error) {
	for _, c := range all {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (c Category) Description() string {
	return descriptions[c]
}

func (c Category) ToResponse() CategoryResponse {
	return CategoryResponse{
		Name:        string(c),
		Description: c.Description(),
	}
}
