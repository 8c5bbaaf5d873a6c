package handlers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

var reSpaces = re2.MustCompile(`[ \t]{2,}`)

// truncate enforces the platform limit. Oversized text is cut and gets an
// ellipsis instead of being rejected.
func truncate(text string) string {
	return truncateTo(text, constants.TweetMaxChars)
}

func truncateTo(text string, limit int) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	keep := limit - utf8.RuneCountInString(constants.Ellipsis)
	if keep <= 0 {
		return string([]rune(constants.Ellipsis)[:max(limit, 0)])
	}
	cut := strings.TrimRightFunc(string([]rune(text)[:keep]), unicode.IsSpace)
	return cut + constants.Ellipsis
}

// withLink appends link and keeps the total within the platform limit.
func withLink(text, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return truncate(text)
	}
	budget := constants.TweetMaxChars - utf8.RuneCountInString(link) - 1
	text = truncateTo(text, budget)
	if text == "" {
		return link
	}
	return text + " " + link
}

// selfMention matches @handle as a whole handle, case-insensitively.
func selfMention(handle string) *re2.Regexp {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil
	}
	return re2.MustCompile(`(?i)@` + re2.QuoteMeta(handle) + `\b`)
}

// stripSelfMention removes the account's own handle from generated text.
func stripSelfMention(re *re2.Regexp, text string) string {
	if re == nil {
		return strings.TrimSpace(text)
	}
	text = re.ReplaceAllString(text, "")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
