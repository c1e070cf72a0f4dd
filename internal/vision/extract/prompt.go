package extract

import (
	"strings"
	"text/template"

	"github.com/storyreader/storyreader/pkg/language"
)

var promptTemplate = template.Must(template.New("ocr").Parse(`이 동화책 페이지의 텍스트를 정확하게 추출해주세요.

규칙:
- 본문 텍스트만 추출하세요 (페이지 번호, 출판사 정보, 저작권 표시 제외)
- 줄바꿈과 문단 구분을 유지하세요
- 대화문의 따옴표는 그대로 유지하세요
- 이미지에 텍스트가 없으면 빈 문자열을 반환하세요
- 텍스트만 반환하고, 다른 설명이나 코멘트는 추가하지 마세요

{{.LanguageClause}}`))

type promptData struct {
	LanguageClause string
}

func languageClause(hint language.Language) string {
	switch hint {
	case language.Korean:
		return "텍스트는 한국어입니다."
	case language.English:
		return "The text is in English."
	default:
		return "텍스트는 한국어 또는 영어일 수 있습니다."
	}
}

// BuildPrompt renders the transcription instructions for hint.
func BuildPrompt(hint language.Language) string {
	var sb strings.Builder
	// The template is static and its data is a plain string.
	_ = promptTemplate.Execute(&sb, promptData{LanguageClause: languageClause(hint)})
	return sb.String()
}
