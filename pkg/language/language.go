// Package language holds the languages a storybook page can be read in and
// the script heuristic used to tell them apart.
package language

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Language is a reading language. Auto only appears on the request side and
// means "infer it from the text".
type Language string

const (
	Korean  Language = "ko"
	English Language = "en"
	Auto    Language = "auto"
)

// koreanRatioThreshold is the share of Hangul characters above which a text
// is treated as Korean.
const koreanRatioThreshold = 0.3

var (
	koreanBase, _  = language.Korean.Base()
	englishBase, _ = language.English.Base()
)

// Parse converts a request value into a Language. It accepts the wire values
// ("ko", "en", "auto"), the English names, and any BCP-47 tag whose base
// language is Korean or English ("ko-KR", "en-US"). An empty string is Auto.
func Parse(s string) (Language, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", string(Auto):
		return Auto, nil
	case string(Korean), "korean":
		return Korean, nil
	case string(English), "english":
		return English, nil
	}

	tag, err := language.Parse(v)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	switch base {
	case koreanBase:
		return Korean, nil
	case englishBase:
		return English, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Concrete reports whether l names an actual language rather than Auto.
func (l Language) Concrete() bool {
	return l == Korean || l == English
}

// ModelName is the lowercase name speech models expect ("korean", "english").
func (l Language) ModelName() string {
	switch l {
	case English:
		return "english"
	case Auto:
		return "auto"
	default:
		return "korean"
	}
}

// IsHangul reports whether r lies in the Hangul syllable or Hangul Jamo block.
func IsHangul(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7AF) || (r >= 0x1100 && r <= 0x11FF)
}

// Classify returns Korean when more than 30% of the non-whitespace
// characters of text are Hangul, English otherwise. Text with no
// non-whitespace characters is Korean.
func Classify(text string) Language {
	var hangul, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if IsHangul(r) {
			hangul++
		}
	}
	if total == 0 {
		return Korean
	}
	if float64(hangul)/float64(total) > koreanRatioThreshold {
		return Korean
	}
	return English
}

// ContainsHangul reports whether any character of text is Hangul.
func ContainsHangul(text string) bool {
	for _, r := range text {
		if IsHangul(r) {
			return true
		}
	}
	return false
}
