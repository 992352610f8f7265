// Package barcode はバーコード番号の検証とGS1プレフィックス情報の取得を担う
//
// # 責務
// - バーコード番号のフォーマット検証（EAN-13/EAN-8/UPC-A/汎用英数字）
// - EAN-13チェックディジットの検証
// - GS1プレフィックスからの発行国判定
// - インド産品（プレフィックス 890）の判定
package barcode

import (
	"regexp"
)

// IndiaGS1Prefixes はGS1インドに割り当てられたプレフィックス
var IndiaGS1Prefixes = []string{"890"}

// generalPattern は汎用バーコードとして許可する文字集合
var generalPattern = regexp.MustCompile(`^[A-Za-z0-9\-.]+$`)

// Info はバーコード番号から導出される基本情報を表す
type Info struct {
	Barcode   string `json:"barcode"`
	Length    int    `json:"length"`
	GS1Prefix string `json:"gs1_prefix,omitempty"`
	Country   string `json:"country,omitempty"`
	IsIndian  bool   `json:"is_indian"`
}

// Validate はバーコード番号のフォーマットを検証する
// 有効かどうかと、人間向けの判定メッセージを返す
func Validate(code string) (bool, string) {
	if code == "" {
		return false, "Barcode is empty"
	}

	// EAN-13はチェックディジットまで検証する
	if len(code) == 13 && isDigits(code) {
		if validEAN13Checksum(code) {
			return true, "Valid EAN-13 barcode"
		}
		return false, "Invalid EAN-13 checksum"
	}

	if len(code) == 8 && isDigits(code) {
		return true, "Valid EAN-8 barcode"
	}

	if len(code) == 12 && isDigits(code) {
		return true, "Valid UPC-A barcode"
	}

	if generalPattern.MatchString(code) {
		return true, "Valid barcode format"
	}

	return false, "Unrecognized barcode format"
}

// IsIndian はバーコードがGS1インドのプレフィックスを持つか判定する
func IsIndian(code string) bool {
	if len(code) < 3 {
		return false
	}
	prefix := code[:3]
	for _, p := range IndiaGS1Prefixes {
		if prefix == p {
			return true
		}
	}
	return false
}

// GetInfo はバーコード番号から基本情報を取得する
func GetInfo(code string) Info {
	info := Info{
		Barcode:  code,
		Length:   len(code),
		IsIndian: IsIndian(code),
	}

	if len(code) >= 3 {
		prefix := code[:3]
		info.GS1Prefix = prefix
		info.Country = countryFromPrefix(prefix)
	}

	return info
}

// validEAN13Checksum はEAN-13のチェックディジットを検証する
func validEAN13Checksum(code string) bool {
	var oddSum, evenSum int
	for i := 0; i < 12; i++ {
		d := int(code[i] - '0')
		if i%2 == 0 {
			oddSum += d
		} else {
			evenSum += d
		}
	}
	check := (10 - (oddSum+evenSum*3)%10) % 10
	return check == int(code[12]-'0')
}

// isDigits は文字列が数字のみで構成されるか判定する
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// countryFromPrefix はGS1プレフィックスから発行国名を返す
func countryFromPrefix(prefix string) string {
	if country, ok := gs1CountryMap[prefix]; ok {
		return country
	}
	return "Unknown"
}

// gs1CountryMap はGS1プレフィックスと発行国の対応表
var gs1CountryMap = map[string]string{
	"890": "India",
	"000": "USA", "001": "USA", "019": "USA",
	"300": "France", "379": "France",
	"400": "Germany", "440": "Germany",
	"450": "Japan", "459": "Japan",
	"460": "Russia", "469": "Russia",
	"471": "Taiwan",
	"480": "Philippines",
	"489": "Hong Kong",
	"500": "UK", "509": "UK",
	"539": "Ireland",
	"540": "Belgium",
	"560": "Portugal",
	"569": "Iceland",
	"570": "Denmark",
	"590": "Poland",
	"599": "Hungary",
	"600": "South Africa",
	"609": "Mauritius",
	"690": "China", "699": "China",
	"729": "Israel",
	"730": "Sweden",
	"740": "Guatemala",
	"750": "Mexico",
	"770": "Colombia",
	"773": "Uruguay",
	"775": "Peru",
	"779": "Argentina",
	"780": "Chile",
	"786": "Ecuador",
	"789": "Brazil",
	"800": "Italy",
	"840": "Spain",
	"850": "Cuba",
	"858": "Slovakia",
	"859": "Czech Republic",
	"860": "Serbia",
	"869": "Turkey",
	"870": "Netherlands",
	"880": "South Korea",
	"885": "Thailand",
	"893": "Vietnam",
	"899": "Indonesia",
	"930": "Australia",
	"940": "New Zealand",
	"955": "Malaysia",
	"958": "Macau",
}
