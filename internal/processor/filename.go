// filename.go - Join keys and campus/class/author metadata derived from uploaded filenames

package processor

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// matchKeySegments is how many trailing "_" segments form a join key.
const matchKeySegments = 3

// Campuses is the fixed campus vocabulary recognised in filenames (NFC).
var Campuses = []string{"광주", "구미", "서울", "대전", "부울경"}

var (
	classPattern       = regexp.MustCompile(`^\d+반$`)
	authorCutPattern   = regexp.MustCompile(`[.\s-]`)
	reservedNameTokens = []string{"보고서", "계획서", ".xlsx"}
)

// FilenameInfo is the campus / class / author triple parsed from a filename.
// Nil fields were not found.
type FilenameInfo struct {
	Campus     *string `json:"campus"`
	ClassName  *string `json:"class_name"`
	AuthorName *string `json:"author_name"`
}

// splitName strips the extension, normalises to NFC (macOS uploads arrive as
// NFD) and splits on "_".
func splitName(filename string) []string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = norm.NFC.String(base)
	return strings.Split(base, "_")
}

// MatchKey derives the plan/report join key: the last three "_" segments of
// the NFC-normalised name without extension. ok is false when the name has
// fewer than three segments.
func MatchKey(filename string) (key string, ok bool) {
	parts := splitName(filename)
	if len(parts) < matchKeySegments {
		return "", false
	}
	return strings.Join(parts[len(parts)-matchKeySegments:], "_"), true
}

// ParseFilenameInfo extracts campus, class and author from names shaped like
// "..._<campus>_<N반>_<author>.xlsx". When the trailing triplet does not match
// it scans all segments and keeps whatever it can recognise.
func ParseFilenameInfo(filename string) FilenameInfo {
	parts := splitName(filename)

	if len(parts) >= 4 {
		campus := strings.TrimSpace(parts[len(parts)-3])
		class := strings.TrimSpace(parts[len(parts)-2])
		authorRaw := strings.TrimSpace(parts[len(parts)-1])

		if isCampus(campus) && classPattern.MatchString(class) {
			author := authorCutPattern.Split(authorRaw, 2)[0]
			return FilenameInfo{
				Campus:     &campus,
				ClassName:  &class,
				AuthorName: nonEmpty(author),
			}
		}
	}

	var info FilenameInfo
	for _, part := range parts {
		part := part
		if isCampus(part) {
			info.Campus = &part
		} else if classPattern.MatchString(part) {
			info.ClassName = &part
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if isCampus(part) || classPattern.MatchString(part) || hasReservedToken(part) {
			continue
		}
		info.AuthorName = nonEmpty(part)
		break
	}

	if info.Campus == nil && info.ClassName == nil {
		return FilenameInfo{}
	}
	return info
}

func isCampus(s string) bool {
	for _, c := range Campuses {
		if s == c {
			return true
		}
	}
	return false
}

func hasReservedToken(s string) bool {
	for _, token := range reservedNameTokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
