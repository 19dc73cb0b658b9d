package rules

import "meal-plan-generator/internal/pkg/common"

// Default 回傳內建的關鍵字表（英文與俄文）
func Default() *Tables {
	return &Tables{
		Allergens: []AllergenCategory{
			{
				Canonical: "cow's milk protein",
				Aliases:   []string{"cmpa", "cow milk protein", "milk protein", "milk", "dairy", "бкм", "абкм", "белок коровьего молока", "молоко"},
				Tokens: []string{
					"*milk*", "*cream*", "yogurt*", "yoghurt*", "*chees*", "butter*", "kefir*", "casein*", "whey", "dairy", "curd*", "ghee", "lactalbum*", "lactose",
					"parmesan*", "mozzarella*", "ricotta*", "feta", "mascarpone*", "cheddar*", "brie", "gouda", "paneer",
					"молок*", "молоч*", "сливк*", "сливоч*", "йогурт*", "сыр*", "творог*", "творож*", "кефир*", "ряженк*", "простокваш*", "сметан*", "казеин*", "сыворот*", "лактоз*",
					"пармезан*", "моцарел*", "рикотт*", "фета", "феты", "фетой", "фету", "брынз*", "маскарпоне",
				},
			},
			{
				Canonical: "lactose",
				Aliases:   []string{"lactose", "lactose intolerance", "лактоза", "лн"},
				Tokens:    []string{"lactose", "*milk*", "лактоз*", "молок*", "молоч*"},
			},
			{
				Canonical: "gluten",
				Aliases:   []string{"gluten", "celiac", "coeliac", "wheat", "глютен", "целиакия"},
				Tokens: []string{
					"gluten", "*wheat*", "rye", "barley", "oat", "oats", "oatmeal", "flour*", "*bread*", "pasta", "semolina", "couscous", "bulgur", "spelt", "noodle*",
					"глютен*", "пшениц*", "пшенич*", "рожь", "ржи", "ржан*", "ячмен*", "овес", "овс*", "мук*", "манк*", "булгур*", "кускус*", "макарон*", "хлеб*", "выпечк*", "лапш*",
				},
			},
			{
				Canonical: "eggs",
				Aliases:   []string{"egg", "eggs", "egg white", "яйцо", "яйца", "белок яйца"},
				Tokens:    []string{"egg*", "yolk*", "mayonnaise", "meringue*", "omelet*", "яйц*", "желтк*", "белок", "белки", "майонез*", "омлет*", "яичн*"},
			},
			{
				Canonical: "fish",
				Aliases:   []string{"fish", "рыба"},
				Tokens: []string{
					"*fish*", "salmon", "cod", "tuna", "trout", "herring", "mackerel", "pollock", "hake", "anchov*", "sardine*",
					"рыб*", "лосос*", "треск*", "тунец", "тунц*", "семг*", "форел*", "сельд*", "скумбр*", "минтай*", "судак*", "хек*",
				},
			},
			{
				Canonical: "seafood",
				Aliases:   []string{"seafood", "shellfish", "морепродукты", "мс"},
				Tokens: []string{
					"seafood", "shrimp*", "prawn*", "mussel*", "squid*", "octopus*", "crab*", "lobster*", "oyster*", "clam*", "caviar",
					"кревет*", "миди*", "кальмар*", "осьмин*", "краб*", "икр*", "устриц*", "омар*",
				},
			},
			{
				Canonical: "tree nuts",
				Aliases:   []string{"tree nuts", "nuts", "nut", "орехи", "орех", "др"},
				Tokens: []string{
					"nut", "almond*", "hazelnut*", "cashew*", "pistachio*", "walnut*", "pecan*", "macadamia*", "pine nut", "brazil nut",
					"орех*", "ореш*", "миндал*", "фундук*", "кешью", "фисташк*", "грецк*", "пекан*", "макадам*", "кедров*",
				},
			},
			{
				Canonical: "peanut",
				Aliases:   []string{"peanut", "peanuts", "арахис"},
				Tokens:    []string{"peanut*", "groundnut*", "арахис*"},
			},
			{
				Canonical: "soy",
				Aliases:   []string{"soy", "soya", "соя"},
				Tokens:    []string{"soy", "soya", "soybean*", "tofu", "edamame", "miso", "соя", "сои", "соев*", "тофу"},
			},
			{
				Canonical: "sesame",
				Aliases:   []string{"sesame", "tahini", "кунжут", "тахини"},
				Tokens:    []string{"sesame", "tahini", "кунжут*", "тахин*", "сезам*"},
			},
			{
				Canonical: "honey",
				Aliases:   []string{"honey", "мед", "мёд"},
				Tokens:    []string{"honey", "мед", "меда", "меду", "медом", "медов*"},
			},
			{
				Canonical: "mustard",
				Aliases:   []string{"mustard", "горчица"},
				Tokens:    []string{"mustard", "горчиц*", "горчичн*"},
			},
			{
				Canonical: "celery",
				Aliases:   []string{"celery", "сельдерей"},
				Tokens:    []string{"celery", "celeriac", "сельдер*"},
			},
			{
				Canonical: "lupin",
				Aliases:   []string{"lupin", "люпин"},
				Tokens:    []string{"lupin*", "люпин*"},
			},
			{
				Canonical: "sulfites",
				Aliases:   []string{"sulfites", "sulphites", "e220", "e-220", "сульфиты"},
				Tokens:    []string{"sulfite*", "sulphite*", "e220", "e 220", "сульфит*"},
			},
			{
				Canonical: "chicken",
				Aliases:   []string{"chicken", "poultry", "курица", "птица"},
				Tokens:    []string{"chicken*", "poultry", "кур*", "цыпл*", "птиц*"},
			},
			{
				Canonical: "turkey",
				Aliases:   []string{"turkey", "индейка"},
				Tokens:    []string{"turkey", "индейк*", "индюш*"},
			},
			{
				Canonical: "berries",
				Aliases:   []string{"berries", "berry", "ягоды", "ягода"},
				Tokens: []string{
					"*berr*", "strawberr*", "raspberr*", "blueberr*", "blackberr*", "*currant*",
					"ягод*", "клубник*", "малин*", "черник*", "смородин*", "ежевик*", "голубик*", "брусник*", "клюкв*", "крыжовник*",
				},
			},
		},
		StemExceptions: map[string][]string{
			"butter*": {"butternut"},
			"сыр*":    {"сырой", "сырая", "сырое", "сырые", "сырого", "сырых"},
			"кур*":    {"курага", "кураги", "куркума", "куркумы", "курс"},
			"мук*":    {"мукан"},
			"*fish*":  {"fishing"},
			"egg*":    {"eggplant", "eggplants"},
			"*wheat*": {"buckwheat"},
			"гус*":    {"густой", "густая", "густое", "густые", "густого", "густо"},
			"печен*":  {"печенье", "печенья", "печений"},
		},
		VegetarianMarkers: []string{"vegetarian*", "vegan*", "вегетариан*", "веган*"},
		BannedMeat: []string{
			"meat*", "chicken*", "poultry", "beef", "pork", "lamb", "mutton", "veal", "turkey", "duck", "goose", "ham", "bacon", "sausage*", "salami", "mince*", "steak*", "liver",
			"*fish*", "salmon", "tuna", "cod", "trout", "shrimp*", "prawn*", "anchov*",
			"мяс*", "кур*", "цыпл*", "птиц*", "говя*", "свин*", "баран*", "телят*", "индей*", "утк*", "утин*", "гус*", "ветчин*", "бекон*", "колбас*", "сосис*", "фарш*", "печен*", "котлет*", "фрикадел*",
			"рыб*", "лосос*", "тунец", "тунц*", "треск*", "кревет*",
		},
		NegationMarkers: []string{"не любит", "не ест", "no", "not", "without", "avoid", "dislikes", "без", "не", "нельзя"},
		CookingVerbs: []string{
			"add", "mix", "stir", "boil", "bake", "fry", "cook", "chop", "cut", "slice", "dice", "peel", "blend", "whisk", "pour", "heat", "simmer",
			"serve", "grate", "drain", "season", "combine", "place", "put", "roast", "steam", "saute", "knead", "beat", "spread", "sprinkle", "cover",
			"remove", "transfer", "wash", "rinse", "soak", "mash", "preheat", "bring", "reduce", "let", "leave", "fold", "garnish", "marinate", "grill",
			"toss", "strain", "melt", "stuff", "shape", "roll", "cool", "refrigerate", "freeze", "warm",
			"нарез*", "нарежь*", "добав*", "смеша*", "смешай*", "перемеша*", "отвар*", "свар*", "варит*", "запек*", "запеч*", "обжар*", "туш*", "взбе*", "взби*",
			"выло*", "полож*", "нале*", "вле*", "посол*", "поперч*", "очист*", "натр*", "довед*", "остуд*", "подава*", "подай*", "промо*", "зале*",
			"измельч*", "разогре*", "нагре*", "слей*", "слить", "размя*", "пюрир*", "охлад*", "посып*", "сформир*",
		},
		PurposeClauses: []string{
			"for frying", "for serving", "for greasing", "for garnish", "for decoration", "for dusting", "to taste", "to serve", "optional",
			"по вкусу", "для жарки", "для подачи", "для смазывания", "для украшения", "для посыпки", "по желанию",
		},
		RefusalTitles: []string{
			"not recommended", "cannot", "can't", "i can", "sorry", "unfortunately", "recipe from chat", "here is", "here's",
			"не рекомендуется", "не могу", "к сожалению", "рецепт из чата", "вот рецепт", "извините",
		},
		ProseMarkers: []string{
			"because", "important", "recommend", "however", "therefore", "note that", "keep in mind", "in general", "for example",
			"потому что", "важно", "рекомендую", "рекомендуется", "однако", "поэтому", "обратите внимание", "например",
		},
		IngredientHeaders: []string{"ingredients", "you will need", "ингредиенты", "понадобится", "вам понадобится", "продукты"},
		StepHeaders:       []string{"steps", "instructions", "preparation", "method", "directions", "how to cook", "приготовление", "способ приготовления", "шаги", "инструкция"},
		AdviceHeaders:     []string{"chef's advice", "chef advice", "chef tip", "tip", "tips", "advice", "совет шефа", "совет", "лайфхак"},
		Sanity: []SanityRule{
			{
				MealType: common.MealBreakfast,
				Reason:   "heavy dish",
				Keywords: []string{
					"soup*", "stew*", "broth", "borscht", "chowder", "goulash", "bouillon",
					"суп*", "бульон*", "щи", "борщ*", "уха", "ухи", "рассольник*", "солянк*", "рагу", "гуляш*", "харчо",
				},
			},
			{
				MealType: common.MealSnack,
				Reason:   "grain-heavy dish",
				Keywords: []string{"porridge*", "oatmeal", "rice", "pasta", "buckwheat", "quinoa", "risotto", "pilaf", "каш*", "гречк*", "рис", "риса", "макарон*", "плов*", "ризотто", "овсянк*"},
			},
			{
				MealType: common.MealSnack,
				Reason:   "sweet breakfast dish",
				Keywords: []string{"pancake*", "waffle*", "french toast", "crepe*", "syrnik*", "блин*", "олад*", "сырник*"},
			},
			{
				MealType: common.MealDinner,
				Reason:   "dessert",
				Keywords: []string{"cake*", "dessert*", "pudding*", "ice cream", "cookie*", "brownie*", "торт*", "десерт*", "пудинг*", "мороженое", "печенье", "пирожн*"},
			},
		},
		SoupKeywords:     []string{"soup*", "broth", "borscht", "chowder", "bouillon", "суп*", "бульон*", "щи", "борщ*", "уха", "рассольник*", "солянк*"},
		BreakfastMarkers: []string{"porridge*", "oatmeal", "omelet*", "omelette*", "pancake*", "syrnik*", "toast*", "scrambled", "granola", "каш*", "омлет*", "сырник*", "олад*", "запеканк*", "тост*", "яичниц*"},
		SnackMarkers:     []string{"snack*", "smoothie*", "yogurt*", "puree", "cookie*", "fruit*", "berr*", "перекус*", "пюре", "смузи", "йогурт*", "печень*", "фрукт*", "ягод*"},
		MealAliases: map[string]string{
			"breakfast": "breakfast", "завтрак": "breakfast",
			"lunch": "lunch", "обед": "lunch",
			"snack": "snack", "перекус": "snack", "полдник": "snack",
			"dinner": "dinner", "supper": "dinner", "ужин": "dinner",
		},
		AgeRestricted:     []string{"spicy", "chili*", "chilli*", "hot sauce", "coffee*", "espresso", "mushroom*", "остр*", "кофе", "гриб*", "шампиньон*"},
		AgeRestrictedFrom: 36,
	}
}
