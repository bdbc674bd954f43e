package ime

import (
	jj "github.com/cloudfoundry/jibber_jabber"
	"golang.org/x/text/language"
)

// Catalog holds the user-visible strings of an engine.
type Catalog struct {
	ReverseMissing string
	ReverseLoading string

	MenuHomophone  string
	MenuSymbols    string
	MenuSimplified string
	MenuReverse    string

	On  string
	Off string
}

var catalogs = map[language.Tag]Catalog{
	language.TraditionalChinese: {
		ReverseMissing: "反查字根碼表檔案不存在！",
		ReverseLoading: "反查字根碼表尚在載入中！",
		MenuHomophone:  "同音字查詢",
		MenuSymbols:    "特殊符號",
		MenuSimplified: "打繁出簡",
		MenuReverse:    "字根反查",
		On:             "開",
		Off:            "關",
	},
	language.SimplifiedChinese: {
		ReverseMissing: "反查字根码表文件不存在！",
		ReverseLoading: "反查字根码表尚在载入中！",
		MenuHomophone:  "同音字查询",
		MenuSymbols:    "特殊符号",
		MenuSimplified: "打繁出简",
		MenuReverse:    "字根反查",
		On:             "开",
		Off:            "关",
	},
	language.English: {
		ReverseMissing: "Reverse lookup table not found!",
		ReverseLoading: "Reverse lookup table is still loading!",
		MenuHomophone:  "Homophones",
		MenuSymbols:    "Symbols",
		MenuSimplified: "Simplified output",
		MenuReverse:    "Reverse lookup",
		On:             "on",
		Off:            "off",
	},
}

// The first tag is the fallback.
var catalogMatcher = language.NewMatcher([]language.Tag{
	language.TraditionalChinese,
	language.SimplifiedChinese,
	language.English,
})

// CatalogFor returns the catalog best matching an IETF locale tag.
func CatalogFor(locale string) Catalog {
	_, i, _ := catalogMatcher.Match(language.Make(locale))
	switch i {
	case 1:
		return catalogs[language.SimplifiedChinese]
	case 2:
		return catalogs[language.English]
	default:
		return catalogs[language.TraditionalChinese]
	}
}

// DetectCatalog returns the catalog for the user's environment locale.
func DetectCatalog() Catalog {
	locale, err := jj.DetectIETF()
	if err != nil {
		locale = "zh-TW"
	}
	return CatalogFor(locale)
}

func (c Catalog) toggle(label string, on bool) string {
	if on {
		return label + ": " + c.On
	}
	return label + ": " + c.Off
}
