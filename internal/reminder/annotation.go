package reminder

import "strings"

// ExtractAnnotation 説明文中の "MARKER{...}" の中身を取り出す。
// 開き括弧が無い・閉じ括弧が無い・中身が空のいずれも false を返す。
func ExtractAnnotation(description, marker string) (string, bool) {
	open := marker + "{"
	i := strings.Index(description, open)
	if i < 0 {
		return "", false
	}

	rest := description[i+len(open):]
	j := strings.Index(rest, "}")
	if j <= 0 {
		return "", false
	}

	return rest[:j], true
}
