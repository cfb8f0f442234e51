package matching

import "strings"

// tables holds the fixed lookup data used by normalization. A tables value is built
// once per Matcher and only read afterwards.
type tables struct {
	abbreviations map[string]string
	romanNumerals map[string]string
	stopWords     map[string]struct{}
	symbols       *strings.Replacer
}

func newTables() *tables {
	return &tables{
		abbreviations: map[string]string{
			"usa":  "united states of america",
			"us":   "united states",
			"uk":   "united kingdom",
			"ussr": "soviet union",
			"wwi":  "world war 1",
			"ww1":  "world war 1",
			"wwii": "world war 2",
			"ww2":  "world war 2",
			"nyc":  "new york city",
			"la":   "los angeles",
			"sf":   "san francisco",
			// expands to tokens that are not themselves abbreviations so a second pass is a no-op
			"dc":   "district of columbia",
			"ca":   "california",
			"ny":   "new york",
			"jr":   "junior",
			"sr":   "senior",
			"dr":   "doctor",
			"mr":   "mister",
			"mrs":  "missus",
			"ms":   "miss",
			"prof": "professor",
			"st":   "saint",
			"mt":   "mount",
			"ft":   "fort",
			"co":   "company",
			"corp": "corporation",
			"inc":  "incorporated",
			"ltd":  "limited",
			"etc":  "et cetera",
			"vs":   "versus",
			"aka":  "also known as",
		},
		romanNumerals: map[string]string{
			"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
			"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
			"xi": "11", "xii": "12", "xiii": "13", "xiv": "14", "xv": "15",
			"xvi": "16", "xvii": "17", "xviii": "18", "xix": "19", "xx": "20",
		},
		stopWords: setOf(
			"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
			"of", "with", "by", "as", "is", "was", "are", "were", "be", "been",
			"being", "have", "has", "had", "do", "does", "did", "will", "would",
			"could", "should", "may", "might", "must", "can", "shall",
		),
		symbols: strings.NewReplacer(
			"&", " and ",
			"+", " plus ",
			"%", " percent ",
			"$", " dollar ",
			"€", " euro ",
			"£", " pound ",
			"¥", " yen ",
			"@", " at ",
			"#", " number ",
			"°", " degree ",
			"½", "0.5",
			"¼", "0.25",
			"¾", "0.75",
			"²", "2",
			"³", "3",
		),
	}
}

func setOf(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
