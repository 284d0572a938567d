// prompt_builder.go - Assemble plan/report text and photos into one model input

package processor

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxPromptChars is the rune budget for the combined plan/report text.
	MaxPromptChars = 25000
	// PromptHeadChars and PromptTailChars are kept when the budget is exceeded.
	PromptHeadChars = 20000
	PromptTailChars = 5000
	// MaxImagesPerPrompt caps how many photos are sent with one evaluation.
	MaxImagesPerPrompt = 3

	// ElisionMarker replaces the omitted middle of an over-long prompt.
	ElisionMarker = "\n\n... (중략) ...\n\n"

	planSectionLabel   = "[계획서]"
	reportSectionLabel = "[결과보고서]"
)

// ErrEmptyContent is returned when both plan and report text are blank.
var ErrEmptyContent = errors.New("plan and report content are both empty")

// AssembledPrompt is the text and photos handed to the evaluator.
type AssembledPrompt struct {
	Text string
	// Evidence states how many photos were found and attached. It is sent as
	// its own part so Text stays within MaxPromptChars plus the marker.
	Evidence string
	// Images holds at most MaxImagesPerPrompt photos, in extraction order.
	Images []EmbeddedImage
	// DetectedImages is how many photos the report contained in total.
	DetectedImages int
	Truncated      bool
}

// AttachedImages returns how many photos accompany the text.
func (p AssembledPrompt) AttachedImages() int {
	return len(p.Images)
}

// AssemblePrompt labels the non-blank plan and report sections, bounds the
// combined text to MaxPromptChars and caps the attached photos.
func AssemblePrompt(planText, reportText string, images []EmbeddedImage) (AssembledPrompt, error) {
	var sb strings.Builder
	if strings.TrimSpace(planText) != "" {
		sb.WriteString(planSectionLabel + "\n" + planText + "\n\n")
	}
	if strings.TrimSpace(reportText) != "" {
		sb.WriteString(reportSectionLabel + "\n" + reportText + "\n\n")
	}
	if sb.Len() == 0 {
		return AssembledPrompt{}, ErrEmptyContent
	}

	text, truncated := TruncateMiddle(sb.String(), MaxPromptChars, PromptHeadChars, PromptTailChars)

	attached := images
	if len(attached) > MaxImagesPerPrompt {
		attached = attached[:MaxImagesPerPrompt]
	}

	prompt := AssembledPrompt{
		Text:           text,
		Images:         attached,
		DetectedImages: len(images),
		Truncated:      truncated,
	}
	prompt.Evidence = PhotoEvidence(prompt.DetectedImages, prompt.AttachedImages())
	return prompt, nil
}

// TruncateMiddle keeps the first head and last tail runes of s, joined by
// ElisionMarker, when s is longer than limit runes.
func TruncateMiddle(s string, limit, head, tail int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:head]) + ElisionMarker + string(runes[len(runes)-tail:]), true
}

// PhotoEvidence states truthfully how many photos the report held and how
// many accompany the prompt.
func PhotoEvidence(detected, attached int) string {
	if detected == 0 {
		return "[증빙 사진] 결과보고서에서 사진이 발견되지 않았습니다.\n"
	}
	return fmt.Sprintf("[증빙 사진] 결과보고서에서 사진 %d장이 발견되었으며 그중 %d장을 첨부합니다. photo_count_detected는 %d로 기재하세요.\n",
		detected, attached, detected)
}
