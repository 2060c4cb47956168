package dataset

import (
	"regexp"
	"strconv"
	"strings"
)

const noGenres = "(no genres listed)"

var (
	// "Toy Story (1995)"
	reTitleYear = regexp.MustCompile(`^(.+?)\s*\((\d{4})\)$`)
	// 片名后的别名："City of Lost Children, The (Cité des enfants perdus, La)"
	reAltTitle = regexp.MustCompile(`^(.+?)(\s+\(.+\))$`)
	// 后置冠词："Matrix, The"
	reTrailingArticle = regexp.MustCompile(`^(.+), (The|A|An|Les|La|Le|L'|Il|Das|Der|Die|El)$`)
)

// SplitTitleYear 拆分 MovieLens 标题中的年份
func SplitTitleYear(raw string) (string, *int) {
	raw = strings.TrimSpace(raw)
	m := reTitleYear.FindStringSubmatch(raw)
	if m == nil {
		return raw, nil
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return raw, nil
	}
	return strings.TrimSpace(m[1]), &year
}

// NormalizeTitle 将后置冠词移回片名开头，别名部分保持不变
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	main, alt := title, ""
	if m := reAltTitle.FindStringSubmatch(title); m != nil {
		main, alt = m[1], m[2]
	}
	if m := reTrailingArticle.FindStringSubmatch(main); m != nil {
		sep := " "
		if strings.HasSuffix(m[2], "'") {
			sep = ""
		}
		main = m[2] + sep + m[1]
	}
	return main + alt
}

// ParseGenres 解析 "Action|Comedy" 形式的类型串
func ParseGenres(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == noGenres {
		return nil
	}
	var res []string
	seen := make(map[string]struct{})
	for _, p := range strings.Split(s, "|") {
		g := strings.TrimSpace(p)
		if g == "" || g == noGenres {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		res = append(res, g)
	}
	return res
}
