package tagger

type categoryDef struct {
	name     string
	keywords []string
}

// Declaration order matters: it breaks ties when picking the primary category.
var defaultCategories = []categoryDef{
	{"landscape", []string{"landscape", "mountain", "forest", "beach", "ocean", "sea", "lake", "river", "waterfall",
		"sunset", "sunrise", "sky", "clouds", "nature", "outdoor", "scenery", "vista", "panorama"}},
	{"character", []string{"character", "person", "man", "woman", "boy", "girl", "hero", "villain", "warrior",
		"wizard", "knight", "princess", "king", "queen", "figure", "human", "face", "portrait"}},
	{"animal", []string{"animal", "dog", "cat", "bird", "fish", "lion", "tiger", "bear", "wolf", "fox", "horse",
		"elephant", "monkey", "pet", "creature", "wildlife"}},
	{"fantasy", []string{"fantasy", "dragon", "unicorn", "magic", "magical", "mythical", "myth", "legend",
		"fairy", "elf", "dwarf", "orc", "goblin", "wizard", "sorcerer", "spell", "enchanted"}},
	{"sci-fi", []string{"sci-fi", "science fiction", "futuristic", "space", "spaceship", "robot", "android",
		"cyborg", "alien", "planet", "star", "galaxy", "cosmic", "future", "technology", "tech"}},
	{"abstract", []string{"abstract", "geometric", "pattern", "shapes", "colorful", "vibrant", "surreal",
		"psychedelic", "non-representational", "expressionist", "minimalist"}},
	{"architecture", []string{"architecture", "building", "house", "castle", "palace", "temple", "church",
		"cathedral", "skyscraper", "tower", "bridge", "structure", "city", "urban"}},
	{"vehicle", []string{"vehicle", "car", "truck", "motorcycle", "bike", "bicycle", "boat", "ship",
		"aircraft", "plane", "spaceship", "rocket", "submarine", "train"}},
	{"object", []string{"object", "furniture", "chair", "table", "weapon", "sword", "gun", "artifact",
		"tool", "instrument", "device", "gadget", "machine", "mechanism"}},
	{"food", []string{"food", "fruit", "vegetable", "meat", "dessert", "cake", "cookie", "pie",
		"meal", "dish", "cuisine", "drink", "beverage"}},
}

var defaultStyles = []string{
	"realistic", "photorealistic", "cartoon", "anime", "manga", "pixel art", "8-bit", "16-bit",
	"3D", "2D", "watercolor", "oil painting", "sketch", "drawing", "digital art", "concept art",
	"illustration", "minimalist", "abstract", "surreal", "impressionist", "expressionist",
	"cyberpunk", "steampunk", "fantasy", "sci-fi", "horror", "gothic", "vintage", "retro",
	"modern", "futuristic", "medieval", "ancient", "victorian", "art deco", "art nouveau",
}

var defaultColors = []string{
	"red", "blue", "green", "yellow", "orange", "purple", "pink", "brown", "black", "white",
	"gray", "grey", "gold", "silver", "bronze", "copper", "turquoise", "teal", "cyan", "magenta",
	"violet", "indigo", "maroon", "navy", "olive", "lime", "aqua", "azure", "beige", "coral",
	"crimson", "fuchsia", "lavender", "khaki", "ivory", "amber", "emerald", "ruby", "sapphire",
}

var defaultMoods = []string{
	"happy", "sad", "angry", "peaceful", "calm", "serene", "chaotic", "mysterious", "magical",
	"dark", "light", "bright", "gloomy", "melancholic", "nostalgic", "romantic", "dramatic",
	"epic", "heroic", "whimsical", "playful", "serious", "intense", "relaxed", "energetic",
	"dynamic", "static", "ethereal", "dreamy", "nightmarish", "surreal", "realistic", "abstract",
}

const (
	maxColorTags = 3
	maxMoodTags  = 2
)
