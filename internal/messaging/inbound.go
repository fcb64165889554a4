package messaging

import (
	"regexp"
	"strings"

	"redemption-service/internal/code"
	"redemption-service/internal/payload"
)

// The messaging provider is inconsistent about where it puts the sender and
// the text across webhook versions; probe the known variants in order.
var phonePaths = []payload.Path{
	"phone",
	"from",
	"data.phone",
	"data.from",
	"sender.phone",
	"message.phone",
	"data.phoneNumber",
	"chatId",
}

var textPaths = []payload.Path{
	"message",
	"text",
	"data.message",
	"data.text",
	"data.body",
	"message.text",
	"text.message",
	"data.message.text",
}

var (
	nonDigits = regexp.MustCompile(`\D`)
	codeToken = regexp.MustCompile(`\b[` + code.Alphabet + `]{6}\b`)
)

// Inbound is the relevant content of an inbound chat message.
type Inbound struct {
	Phone string
	Text  string
}

// ParseInbound extracts the sender's phone and the message text from a
// provider webhook document. Phone numbers are reduced to digits.
func ParseInbound(doc map[string]any) Inbound {
	phone, _ := payload.Extract(doc, phonePaths)
	text, _ := payload.Extract(doc, textPaths)

	return Inbound{
		Phone: nonDigits.ReplaceAllString(phone, ""),
		Text:  text,
	}
}

// ExtractCode pulls a redemption code token out of free text, e.g.
// "codigo 7K3M9P". Matching is case-insensitive over the code alphabet.
func ExtractCode(text string) (string, bool) {
	token := codeToken.FindString(strings.ToUpper(text))
	if token == "" {
		return "", false
	}
	return token, true
}
