// Package classifier implements the admission heuristic that gates which
// items reach the generation stage: advertisement/spam detection plus
// keyword-based interest filtering. Pure functions, no I/O.
package classifier

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// adKeywords are promotional markers checked as case-insensitive substrings
// of title+summary. Kept in the product's primary language plus the common
// English hashtag markers.
var adKeywords = []string{
	// Direct advertisement markers
	"реклама", "спонсор", "партнер", "анонс", "pr ", "pr:", "pr-",
	"спонсорский", "партнерский", "коммерческий", "маркетинг",
	// Hashtags
	"#ad", "#sponsored", "#реклама", "#спонсор", "#анонс",
	"#pr", "#partner", "#commercial",
	// Commerce vocabulary
	"купить", "цена", "скидка", "акция", "распродажа", "товар",
	"заказать", "доставка", "оплата", "рублей", "руб.",
	// Calls to action
	"пишите в лс", "писать в лс", "в личные сообщения",
	"подробнее в профиле", "ссылка в био",
}

// Contact-information patterns: a telegram-style handle, a 10+ digit run
// (phone number) and an email-like token.
var contactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`@\w+`),
	regexp.MustCompile(`\+?\d{10,}`),
	regexp.MustCompile(`\b\w+@\w+\.\w+\b`),
}

// IsAdvertisement reports whether an item looks like a promotional or spam
// post. Any single rule firing is enough.
func IsAdvertisement(title, summary, author string) bool {
	origTitle := title
	title = strings.ToLower(title)
	summary = strings.ToLower(summary)
	author = strings.ToLower(author)
	fullText := title + " " + summary

	// 1. Promotional keyword anywhere in title or summary.
	for _, keyword := range adKeywords {
		if strings.Contains(fullText, keyword) {
			return true
		}
	}

	// 2. Title starts with a run of 3+ emoji.
	if leadingEmojiRun(title) >= 3 {
		return true
	}

	// 3. Title too short to be a real headline.
	if utf8.RuneCountInString(strings.TrimSpace(title)) < 10 {
		return true
	}

	// 4. Shouting: original-case title entirely upper-case.
	if isUpperTitle(origTitle) && utf8.RuneCountInString(origTitle) > 5 {
		return true
	}

	// 5. Too many exclamation marks.
	if strings.Count(title, "!") > 3 {
		return true
	}

	// 6. Author is a bot.
	if author != "" && (strings.Contains(author, "bot") || strings.HasSuffix(author, "_bot")) {
		return true
	}

	// 7. Multiple links in the summary.
	urlCount := strings.Count(summary, "http://") +
		strings.Count(summary, "https://") +
		strings.Count(summary, "t.me/")
	if urlCount > 2 {
		return true
	}

	// 8. Contact information in title or summary.
	for _, pattern := range contactPatterns {
		if pattern.MatchString(fullText) {
			return true
		}
	}

	// 9. Repeated-word spam signature: in a short summary (11..49 words),
	// a single word longer than 3 runes repeating more than 3 times.
	words := strings.Fields(summary)
	if len(words) > 10 && len(words) < 50 {
		counts := make(map[string]int)
		maxRepeats := 0
		for _, word := range words {
			if utf8.RuneCountInString(word) > 3 {
				counts[word]++
				if counts[word] > maxRepeats {
					maxRepeats = counts[word]
				}
			}
		}
		if maxRepeats > 3 {
			return true
		}
	}

	return false
}

// MatchesKeywords reports whether the item matches the interest filter. An
// empty keyword set admits everything; otherwise at least one keyword must
// occur as a case-insensitive substring of title+summary.
func MatchesKeywords(title, summary string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	searchText := strings.ToLower(title) + " " + strings.ToLower(summary)
	for _, keyword := range keywords {
		if strings.Contains(searchText, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// Admit combines both gates: an item proceeds to generation iff it is not an
// advertisement and matches the interest filter.
func Admit(title, summary, author string, keywords []string) bool {
	if IsAdvertisement(title, summary, author) {
		return false
	}
	return MatchesKeywords(title, summary, keywords)
}

// emojiRanges covers the common pictographic, emoticon, transport/symbol and
// regional-indicator (flag) blocks.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // misc symbols and pictographs
	{0x1F680, 0x1F6FF}, // transport and map symbols
	{0x1F1E0, 0x1F1FF}, // regional indicators
}

func isEmoji(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

// leadingEmojiRun counts consecutive emoji at the very start of s.
func leadingEmojiRun(s string) int {
	run := 0
	for _, r := range s {
		if !isEmoji(r) {
			break
		}
		run++
	}
	return run
}

// isUpperTitle reports whether the title contains at least one letter and no
// lower-case letters. Mixed-case titles never qualify.
func isUpperTitle(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
