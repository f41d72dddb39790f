package agenda

import "strings"

// DefaultIcon is used when no keyword matches.
const DefaultIcon = "🗓️"

type iconRule struct {
	icon     string
	keywords []string
}

// iconRules is checked in order; the first rule with a keyword contained
// in the lowercased summary wins.
var iconRules = []iconRule{
	{"👥", []string{"sync", "meeting", "call", "catch-up", "zoom", "teams", "hangout", "conference", "webinar", "appt", "appointment"}},
	{"✈️", []string{"flight", "airport", "depart", "arrival", "boarding", "travel", "train", "bus", "commute", "transit"}},
	{"🍴", []string{"lunch", "dinner", "breakfast", "meal", "restaurant", "brunch", "supper", "cafe", "coffee", "food"}},
	{"💪", []string{"gym", "workout", "exercise", "training", "physio", "swim", "yoga", "pilates", "boxing", "barre", "#fitness"}},
	{"⚕️", []string{"doctor", "dentist", "clinic", "hospital", "checkup", "therapy", "medical", "vaccine"}},
	{"🎂", []string{"birthday", "bday", "anniversary", "cake"}},
	{"✝️", []string{"mass", "church", "prayer", "bible", "worship", "choir"}},
	{"❤️", []string{"date night", "romantic", "valentine"}},
	{"🎉", []string{"party", "celebration", "festival", "gathering", "ceremony", "wedding", "reunion", "farewell"}},
	{"🏖️", []string{"vacation", "holiday", "beach", "trip", "getaway", "resort"}},
	{"🏠", []string{"home", "house", "family", "chores", "cleaning", "maintenance"}},
	{"🛒", []string{"shopping", "groceries", "market", "store", "supermarket", "mall"}},
	{"🧑‍💻", []string{"work", "project", "deadline", "coding", "deploy", "release", "review", "sprint", "office", "standup", "retro", "admin", "1:1", "townhall", "all hands", "one-on-one"}},
	{"📚", []string{"study", "class", "lecture", "exam", "school", "university", "course", "assignment", "reading", "homework", "revision"}},
	{"🎬", []string{"movie", "film", "cinema", "theater", "theatre", "screening"}},
	{"🎵", []string{"concert", "music", "gig", "recital", "orchestra", "opera"}},
	{"⚽", []string{"soccer", "tennis", "league", "sports", "golf", "baseball", "volleyball", "hockey", "marathon", "football", "basketball"}},
	{"🧘", []string{"meditate", "mindfulness", "relax", "wellness", "spa", "retreat"}},
	{"🚗", []string{"car ", "drive", "roadtrip", "mechanic", "vehicle", "uber", "taxi"}},
	{"💯", []string{"interview", "job", "career", "resume"}},
	{"🛏️", []string{"sleep", "nap", "bedtime", "haircut"}},
	{"🍼", []string{"baby", "feeding", "diaper", "infant", "toddler", "childcare"}},
	{"🚲", []string{"bike", "bicycle", "cycling", "biking"}},
	{"🐈", []string{"pet", "vet", "cat", "kitten"}},
	{"⚠️", []string{"hold"}},
}

// IconFor picks an icon for an event summary.
func IconFor(summary string) string {
	s := strings.ToLower(summary)
	for _, r := range iconRules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.icon
			}
		}
	}
	return DefaultIcon
}
