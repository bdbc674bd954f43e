package ime

// Built-in tables of the symbol overlays, keyed by the codes typed after
// the overlay marker.
var menuSymbolTable = map[string][]string{
	",":  {"，", "、", "﹐", "﹑"},
	".":  {"。", "．", "…", "‥", "﹒"},
	";":  {"；", "﹔"},
	":":  {"：", "﹕", "︰"},
	"?":  {"？", "﹖"},
	"!":  {"！", "﹗"},
	"'":  {"「", "」", "『", "』"},
	"\"": {"“", "”", "〝", "〞"},
	"(":  {"（", "）", "︵", "︶"},
	"[":  {"【", "】", "〔", "〕"},
	"<":  {"《", "》", "〈", "〉"},
	"-":  {"─", "—", "－", "～"},
	"/":  {"／", "＼", "÷"},
	"*":  {"＊", "×", "※", "★", "☆"},
	"$":  {"＄", "￥", "￡", "€"},
	"@":  {"＠", "⊕", "⊙"},
	"#":  {"＃", "№"},
	"%":  {"％", "‰", "℃"},
	"=":  {"＝", "≠", "≒", "≦", "≧"},
	"+":  {"＋", "±"},
	"&":  {"＆", "§"},
	"~":  {"～", "∼"},
	"0":  {"○"},
}

var dayiSymbolTable = map[string][]string{
	"1": {"＋", "－", "×", "÷", "＝", "≠", "±", "√", "∞"},
	"2": {"←", "→", "↑", "↓", "↖", "↗", "↙", "↘"},
	"3": {"○", "●", "□", "■", "△", "▲", "◇", "◆"},
	"4": {"＄", "￥", "￡", "€", "¢", "％", "‰"},
	"5": {"℃", "℉", "㎜", "㎝", "㎞", "㎏", "㏄"},
	"6": {"①", "②", "③", "④", "⑤", "⑥", "⑦", "⑧", "⑨"},
	"7": {"Ⅰ", "Ⅱ", "Ⅲ", "Ⅳ", "Ⅴ", "Ⅵ", "Ⅶ", "Ⅷ", "Ⅸ"},
	"8": {"ㄅ", "ㄆ", "ㄇ", "ㄈ", "ㄉ", "ㄊ", "ㄋ", "ㄌ", "ㄍ"},
	"9": {"♠", "♥", "♦", "♣", "♪", "♫", "☀", "☁", "☂"},
	"0": {"〇", "一", "二", "三", "四", "五", "六", "七", "八", "九"},
}

// punctuation maps ASCII punctuation typed with an empty buffer in Chinese
// mode to its full-width form.
var punctuation = map[rune]string{
	',': "，", '.': "。", ';': "；", ':': "：", '?': "？", '!': "！",
	'(': "（", ')': "）", '[': "「", ']': "」", '{': "『", '}': "』",
	'\\': "、", '~': "～",
}

func symbolCandidates(marker rune, code string) []string {
	if marker == menuMarker {
		return menuSymbolTable[code]
	}
	return dayiSymbolTable[code]
}
