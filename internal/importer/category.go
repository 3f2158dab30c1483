package importer

import (
	"strings"

	"github.com/MrJamesThe3rd/treevu/internal/expense"
)

const (
	explicitConfidence = 1.0
	keywordConfidence  = 0.6
)

var categoryAliases = map[string]expense.Category{
	"comida":          expense.CategoryFood,
	"alimentación":    expense.CategoryFood,
	"alimentacion":    expense.CategoryFood,
	"restaurantes":    expense.CategoryFood,
	"transporte":      expense.CategoryTransport,
	"salud":           expense.CategoryHealth,
	"educación":       expense.CategoryEducation,
	"educacion":       expense.CategoryEducation,
	"entretenimiento": expense.CategoryEntertainment,
	"ocio":            expense.CategoryEntertainment,
	"vivienda":        expense.CategoryHousing,
	"alquiler":        expense.CategoryHousing,
	"servicios":       expense.CategoryServices,
	"compras":         expense.CategoryShopping,
	"otros":           expense.CategoryOther,
	"otro":            expense.CategoryOther,
}

// merchantKeywords guesses a category from the merchant name when the file
// has none. Checked in order.
var merchantKeywords = []struct {
	keyword  string
	category expense.Category
}{
	{"farmacia", expense.CategoryHealth},
	{"inkafarma", expense.CategoryHealth},
	{"mifarma", expense.CategoryHealth},
	{"clinica", expense.CategoryHealth},
	{"clínica", expense.CategoryHealth},
	{"uber", expense.CategoryTransport},
	{"cabify", expense.CategoryTransport},
	{"taxi", expense.CategoryTransport},
	{"grifo", expense.CategoryTransport},
	{"primax", expense.CategoryTransport},
	{"netflix", expense.CategoryEntertainment},
	{"spotify", expense.CategoryEntertainment},
	{"cine", expense.CategoryEntertainment},
	{"universidad", expense.CategoryEducation},
	{"colegio", expense.CategoryEducation},
	{"libreria", expense.CategoryEducation},
	{"librería", expense.CategoryEducation},
	{"luz del sur", expense.CategoryServices},
	{"enel", expense.CategoryServices},
	{"sedapal", expense.CategoryServices},
	{"movistar", expense.CategoryServices},
	{"claro", expense.CategoryServices},
	{"alquiler", expense.CategoryHousing},
	{"restaurant", expense.CategoryFood},
	{"pollería", expense.CategoryFood},
	{"polleria", expense.CategoryFood},
	{"panadería", expense.CategoryFood},
	{"panaderia", expense.CategoryFood},
	{"cafe", expense.CategoryFood},
	{"café", expense.CategoryFood},
	{"tambo", expense.CategoryFood},
	{"plaza vea", expense.CategoryShopping},
	{"saga", expense.CategoryShopping},
	{"ripley", expense.CategoryShopping},
}

// classify resolves a category from an explicit cell first and the
// merchant name second. An empty category means neither matched.
func classify(cell, merchant string) (expense.Category, float64) {
	if cell = strings.ToLower(strings.TrimSpace(cell)); cell != "" {
		if c := expense.Category(cell); c.Valid() {
			return c, explicitConfidence
		}

		if c, ok := categoryAliases[cell]; ok {
			return c, explicitConfidence
		}
	}

	name := strings.ToLower(merchant)
	for _, k := range merchantKeywords {
		if strings.Contains(name, k.keyword) {
			return k.category, keywordConfidence
		}
	}

	return "", 0
}
