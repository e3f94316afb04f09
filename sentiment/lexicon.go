package sentiment

// keywordScores is the fixed lexicon mapping lowercase terms to integer
// base scores in {-3,-2,-1,0,+1,+2,+3}, per spec.md §6's canonical table.
// "pleasant" appears in both the +1 and +2 source groupings; the later
// grouping wins, matching the original dict literal's last-write-wins
// semantics.
var keywordScores = map[string]float64{
	// -3
	"terrible": -3, "awful": -3, "horrible": -3, "worst": -3, "disgusting": -3,
	"appalling": -3, "atrocious": -3, "dreadful": -3, "abysmal": -3, "pathetic": -3,
	"useless": -3, "nightmare": -3, "disaster": -3, "catastrophe": -3,

	// -2
	"bad": -2, "poor": -2, "disappointing": -2, "rude": -2, "unprofessional": -2,
	"dirty": -2, "unacceptable": -2, "inadequate": -2, "inferior": -2, "subpar": -2,
	"unsatisfactory": -2, "unpleasant": -2, "annoying": -2, "frustrating": -2,
	"careless": -2, "sloppy": -2, "messy": -2, "smelly": -2, "broken": -2,
	"damaged": -2, "unsafe": -2, "dangerous": -2, "scary": -2, "worried": -2,

	// -1
	"late": -1, "slow": -1, "uncomfortable": -1, "mediocre": -1, "lacking": -1,
	"substandard": -1, "below": -1, "minor": -1, "issue": -1, "problem": -1,
	"concern": -1, "delay": -1, "wait": -1, "waiting": -1, "cold": -1,
	"noisy": -1, "loud": -1, "cramped": -1, "tight": -1, "old": -1,
	"worn": -1, "tired": -1, "confused": -1, "lost": -1, "wrong": -1,

	// 0
	"okay": 0, "fine": 0, "average": 0, "normal": 0, "standard": 0,
	"regular": 0, "typical": 0, "usual": 0, "acceptable": 0, "adequate": 0,
	"decent": 0, "fair": 0, "moderate": 0, "reasonable": 0, "satisfactory": 0,
	"alright": 0, "ok": 0, "so-so": 0, "nothing": 0, "basic": 0,

	// +1
	"good": 1, "nice": 1, "helpful": 1, "friendly": 1, "clean": 1,
	"polite": 1, "courteous": 1, "kind": 1, "gentle": 1,
	"patient": 1, "understanding": 1, "accommodating": 1, "cooperative": 1,
	"reliable": 1, "punctual": 1, "timely": 1, "efficient": 1, "smooth": 1,
	"easy": 1, "simple": 1, "convenient": 1, "comfortable": 1, "safe": 1,

	// +2
	"great": 2, "excellent": 2, "amazing": 2, "professional": 2, "superb": 2,
	"impressive": 2, "wonderful": 2, "fantastic": 2, "brilliant": 2, "awesome": 2,
	"terrific": 2, "fabulous": 2, "marvelous": 2, "splendid": 2, "delightful": 2,
	"enjoyable": 2, "pleasant": 2, "satisfying": 2, "quality": 2, "top": 2,
	"best": 2, "superior": 2, "premium": 2, "first-class": 2, "high-quality": 2,

	// +3
	"outstanding": 3, "perfect": 3, "exceptional": 3, "extraordinary": 3,
	"phenomenal": 3, "magnificent": 3, "spectacular": 3, "incredible": 3,
	"unbelievable": 3, "remarkable": 3, "exemplary": 3, "flawless": 3,
	"impeccable": 3, "pristine": 3, "supreme": 3, "ultimate": 3,
}

var negationWords = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "neither": {}, "nobody": {}, "nothing": {}, "nowhere": {},
	"hardly": {}, "barely": {}, "scarcely": {}, "rarely": {}, "seldom": {}, "without": {},
	"don't": {}, "doesn't": {}, "didn't": {}, "won't": {}, "wouldn't": {}, "can't": {}, "cannot": {},
}

var intensifiers = map[string]float64{
	"very": 1.5, "extremely": 2.0, "incredibly": 2.0, "absolutely": 1.8,
	"really": 1.3, "quite": 1.2, "pretty": 1.1, "fairly": 1.1,
	"totally": 1.8, "completely": 1.8, "utterly": 2.0, "highly": 1.5,
}

// diminishers includes multi-word entries ("a bit", "a little", "kind of",
// "sort of") that can never match during the single-token walk in
// matchKeywords, since tokenization splits on whitespace. They are kept
// here for fidelity with the source lexicon.
var diminishers = map[string]float64{
	"slightly": 0.5, "somewhat": 0.6, "barely": 0.4, "hardly": 0.3,
	"a bit": 0.6, "a little": 0.6, "kind of": 0.7, "sort of": 0.7,
}

// neutralContext is the closed set of high-frequency descriptive terms
// whose prevalence signals non-sentimental content.
var neutralContext = map[string]struct{}{
	"was": {}, "were": {}, "is": {}, "are": {}, "had": {}, "have": {}, "got": {}, "went": {}, "came": {},
	"arrived": {}, "left": {}, "took": {}, "picked": {}, "dropped": {}, "drove": {}, "ride": {},
	"trip": {}, "journey": {}, "time": {}, "minutes": {}, "hours": {}, "destination": {},
	"location": {}, "address": {}, "street": {}, "road": {}, "traffic": {}, "weather": {},
}
