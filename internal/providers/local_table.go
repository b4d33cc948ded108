package providers

import "mcp-food-resolver/internal/models"

var builtinBarcodes = map[string]models.FoodRecord{
	"049000006346": {
		ProductName: "Coca-Cola Classic",
		Brand:       "Coca-Cola",
		Ingredients: []string{
			"carbonated water",
			"high fructose corn syrup",
			"caramel color",
			"phosphoric acid",
			"natural flavors",
			"caffeine",
		},
		ServingSizeGrams: 355,
		GlycemicIndex:    models.Grams(63),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(39),
			FiberGrams:      models.Grams(0),
			SugarsGrams:     models.Grams(39),
			ProteinGrams:    models.Grams(0),
			FatGrams:        models.Grams(0),
			Calories:        models.Grams(140),
		},
	},
	"5449000000996": {
		ProductName: "Coca-Cola Original Taste",
		Brand:       "Coca-Cola",
		Ingredients: []string{
			"carbonated water",
			"sugar",
			"colour (caramel E150d)",
			"phosphoric acid",
			"natural flavourings including caffeine",
		},
		ServingSizeGrams: 330,
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(35),
			FiberGrams:      models.Grams(0),
			SugarsGrams:     models.Grams(35),
			ProteinGrams:    models.Grams(0),
			FatGrams:        models.Grams(0),
			Calories:        models.Grams(139),
		},
	},
	"3017620422003": {
		ProductName: "Nutella",
		Brand:       "Ferrero",
		Ingredients: []string{
			"sugar",
			"palm oil",
			"hazelnuts",
			"skimmed milk powder",
			"fat-reduced cocoa",
			"emulsifier: lecithins (soya)",
			"vanillin",
		},
		ServingSizeGrams: 15,
		GlycemicIndex:    models.Grams(33),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(8.6),
			FiberGrams:      models.Grams(0),
			SugarsGrams:     models.Grams(8.4),
			ProteinGrams:    models.Grams(0.9),
			FatGrams:        models.Grams(4.6),
			Calories:        models.Grams(80),
		},
	},
	"016000275287": {
		ProductName: "Cheerios",
		Brand:       "General Mills",
		Ingredients: []string{
			"whole grain oats",
			"corn starch",
			"sugar",
			"salt",
			"tripotassium phosphate",
			"vitamin E (mixed tocopherols)",
		},
		ServingSizeGrams: 39,
		GlycemicIndex:    models.Grams(74),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(29),
			FiberGrams:      models.Grams(4),
			SugarsGrams:     models.Grams(2),
			ProteinGrams:    models.Grams(5),
			FatGrams:        models.Grams(2.5),
			Calories:        models.Grams(140),
		},
	},
}

var builtinNames = map[string]models.FoodRecord{
	"banana": {
		ProductName:      "Banana",
		Brand:            "Generic",
		Ingredients:      []string{"banana"},
		ServingSizeGrams: 118,
		GlycemicIndex:    models.Grams(51),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(27),
			FiberGrams:      models.Grams(3.1),
			SugarsGrams:     models.Grams(14.4),
			ProteinGrams:    models.Grams(1.3),
			FatGrams:        models.Grams(0.4),
			Calories:        models.Grams(105),
		},
	},
	"apple": {
		ProductName:      "Apple",
		Brand:            "Generic",
		Ingredients:      []string{"apple"},
		ServingSizeGrams: 182,
		GlycemicIndex:    models.Grams(36),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(25),
			FiberGrams:      models.Grams(4.4),
			SugarsGrams:     models.Grams(19),
			ProteinGrams:    models.Grams(0.5),
			FatGrams:        models.Grams(0.3),
			Calories:        models.Grams(95),
		},
	},
	"white rice": {
		ProductName:      "White Rice, cooked",
		Brand:            "Generic",
		Ingredients:      []string{"white rice", "water"},
		ServingSizeGrams: 158,
		GlycemicIndex:    models.Grams(73),
		Nutrition: models.Nutrition{
			TotalCarbsGrams: models.Grams(45),
			FiberGrams:      models.Grams(0.6),
			SugarsGrams:     models.Grams(0.1),
			ProteinGrams:    models.Grams(4.3),
			FatGrams:        models.Grams(0.4),
			Calories:        models.Grams(205),
		},
	},
}
