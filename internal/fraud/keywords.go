package fraud

// Keyword and term lists matched against the lowercased free-text blob
// of each claim (notes, loss description, injury description).

var fraudKeywords = []string{
	"fraud",
	"staged",
	"suspicious",
	"exaggerated",
	"inflated",
	"questionable",
	"inconsistent",
	"fabricated",
}

var totalLossTerms = []string{
	"total loss",
	"write off",
	"beyond repair",
}

var weatherTerms = []string{
	"fog",
	"black ice",
	"heavy rain",
	"hail",
	"snowstorm",
}

var softTissueTerms = []string{
	"whiplash",
	"soft tissue",
	"sprain",
	"strain",
}

var severeInjuryTerms = []string{
	"head",
	"spine",
	"back",
	"neck",
}

var severeBodyParts = map[string]bool{
	"HEAD":  true,
	"L2":    true,
	"SPINE": true,
	"BACK":  true,
}
