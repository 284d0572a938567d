// prompt_output_format.go - Output contract appended to every system instruction
//
// 평가 프롬프트 파일이 어떤 내용이든 응답은 아래 규칙을 따라야 한다.
// ParseEvaluation이 기대하는 형태와 맞춰 둔다.

package ai

import "fmt"

// GetOutputFormatRules returns the response rules the parser depends on.
func GetOutputFormatRules() string {
	return fmt.Sprintf(`📋 OUTPUT FORMAT (JSON)
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

- 응답은 JSON 객체 하나만 출력합니다. 설명 문장이나 코드 블록 밖의 텍스트를 덧붙이지 마세요.
- "%s": 항목 점수의 합계를 정수로 기재합니다.
- "%s": 결과보고서에서 발견된 사진 수를 정수로 기재합니다.
- 문자열 안의 줄바꿈은 \n 으로 이스케이프합니다.
- 항목을 판단할 근거가 없으면 0점을 주고 사유를 적습니다.
`, FieldTotal, FieldPhotoCountDetected)
}
